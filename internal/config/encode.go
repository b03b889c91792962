package config

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/vampireman/internal/models"
)

// MarshalYAML renders the effective configuration in the YAML config
// syntax. Parameters keep their order; values read from files are written
// as their file path.
func (c *Config) MarshalYAML() ([]byte, error) {
	general := &yaml.Node{}
	if err := general.Encode(c.General); err != nil {
		return nil, fmt.Errorf("encoding general: %w", err)
	}

	hydro, err := c.encodeParameters(c.Hydrogeological)
	if err != nil {
		return nil, err
	}
	heatpumps, err := c.encodeParameters(c.HeatPumps)
	if err != nil {
		return nil, err
	}

	root := mapping(
		"general", general,
		"hydrogeological_parameters", hydro,
		"heatpump_parameters", heatpumps,
	)
	return yaml.Marshal(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}})
}

func (c *Config) encodeParameters(params []models.Parameter) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range params {
		var value *yaml.Node
		if src, ok := c.sources[p.Name]; ok {
			value = scalar(src)
		} else {
			v, err := encodeValue(p.Value)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			value = v
		}
		pn := mapping(
			"vary", scalar(string(p.Vary)),
			"distribution", scalar(string(p.Distribution)),
			"value", value,
		)
		node.Content = append(node.Content, scalar(p.Name), pn)
	}
	return node, nil
}

func encodeValue(v models.Value) (*yaml.Node, error) {
	switch tv := v.(type) {
	case models.Scalar:
		return number(float64(tv)), nil
	case models.Range:
		return rangeNode(tv), nil
	case *models.Noise:
		var freq *yaml.Node
		if tv.Frequency.Range != nil {
			freq = rangeNode(*tv.Frequency.Range)
		} else {
			freq = vec(tv.Frequency.XYZ)
		}
		return mapping("frequency", freq, "min", number(tv.Min), "max", number(tv.Max)), nil
	case *models.TimeSeries:
		node := &yaml.Node{Kind: yaml.MappingNode}
		for _, e := range tv.Entries {
			var val *yaml.Node
			if e.Range != nil {
				val = rangeNode(*e.Range)
			} else {
				val = number(e.Value)
			}
			node.Content = append(node.Content, number(e.Time), val)
		}
		return node, nil
	case *models.HeatPump:
		node := &yaml.Node{Kind: yaml.MappingNode}
		if tv.Location != nil {
			node.Content = append(node.Content, scalar("location"), vec(*tv.Location))
		}
		for _, kv := range []struct {
			key string
			val models.Value
		}{{"injection_temp", tv.InjectionTemp}, {"injection_rate", tv.InjectionRate}} {
			val, err := encodeValue(kv.val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", kv.key, err)
			}
			node.Content = append(node.Content, scalar(kv.key), val)
		}
		return node, nil
	case *models.HeatPumpGroup:
		return mapping(
			"number", scalar(strconv.Itoa(tv.Count)),
			"injection_temp", rangeNode(tv.InjectionTemp),
			"injection_rate", rangeNode(tv.InjectionRate),
		), nil
	default:
		return nil, fmt.Errorf("cannot encode %T inline", v)
	}
}

// mapping builds a mapping node from alternating keys and value nodes.
func mapping(kv ...any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i := 0; i+1 < len(kv); i += 2 {
		node.Content = append(node.Content, scalar(kv[i].(string)), kv[i+1].(*yaml.Node))
	}
	return node
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func number(f float64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}
}

func vec(v models.Vec3) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle, Content: []*yaml.Node{number(v[0]), number(v[1]), number(v[2])}}
}

func rangeNode(r models.Range) *yaml.Node {
	n := mapping("min", number(r.Min), "max", number(r.Max))
	n.Style = yaml.FlowStyle
	return n
}
