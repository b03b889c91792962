package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclFile is the top-level structure of an HCL config:
//
//	general { number_cells = [32, 256, 1] }
//	hydrogeological "permeability" { vary = "space" value = { ... } }
//	heatpump "hp1" { value = { location = [16, 32, 1] ... } }
type hclFile struct {
	General         *hclGeneral    `hcl:"general,block"`
	Hydrogeological []hclParameter `hcl:"hydrogeological,block"`
	HeatPumps       []hclParameter `hcl:"heatpump,block"`
}

type hclGeneral struct {
	Body hcl.Body `hcl:",remain"`
}

type hclParameter struct {
	Name         string    `hcl:"name,label"`
	Vary         string    `hcl:"vary,optional"`
	Distribution string    `hcl:"distribution,optional"`
	Value        cty.Value `hcl:"value"`
}

func parseHCL(data []byte, filename string) (*rawConfig, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}

	raw := &rawConfig{General: map[string]any{}}
	if parsed.General != nil {
		attrs, diags := parsed.General.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, diags
		}
		for name, attr := range attrs {
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			native, err := ctyToNative(v)
			if err != nil {
				return nil, fmt.Errorf("general.%s: %w", name, err)
			}
			raw.General[name] = native
		}
	}

	var err error
	if raw.Hydrogeological, err = hclParameters(parsed.Hydrogeological); err != nil {
		return nil, err
	}
	if raw.HeatPumps, err = hclParameters(parsed.HeatPumps); err != nil {
		return nil, err
	}
	return raw, nil
}

func hclParameters(blocks []hclParameter) ([]rawParameter, error) {
	params := make([]rawParameter, 0, len(blocks))
	for _, b := range blocks {
		v, err := ctyToNative(b.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", b.Name, err)
		}
		params = append(params, rawParameter{
			Name:         b.Name,
			Vary:         b.Vary,
			Distribution: b.Distribution,
			Value:        v,
		})
	}
	return params, nil
}

// ctyToNative recursively converts a cty.Value to its natural Go counterpart.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("converting number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
