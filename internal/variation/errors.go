package variation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy is returned for a vary policy that cannot be applied to
	// the parameter's value kind, or an unknown policy.
	ErrInvalidPolicy = errors.New("invalid vary policy for value")

	// ErrUnsupported is returned for a value kind the resolver has no rule for.
	ErrUnsupported = errors.New("unsupported value")

	// ErrMissingLocation is returned for a fixed heat pump without a location.
	ErrMissingLocation = errors.New("fixed heat pump has no location")

	// ErrDuplicateParameter is returned when two parameters share a name.
	ErrDuplicateParameter = errors.New("duplicate parameter name")

	// ErrInvalidGrid is returned for a non-positive cell count or resolution.
	ErrInvalidGrid = errors.New("invalid grid")

	// ErrAlreadyPrepared is returned by Prepare for a dataset it already
	// prepared.
	ErrAlreadyPrepared = errors.New("dataset already prepared")

	// ErrNotPrepared is returned by Vary for a dataset Prepare has not run on.
	ErrNotPrepared = errors.New("dataset not prepared")
)

// PreparationDatapoint marks a ConfigError raised before any datapoint was built.
const PreparationDatapoint = -1

// ConfigError ties a variation failure to the parameter and datapoint that
// caused it.
type ConfigError struct {
	Parameter string
	Datapoint int
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Datapoint == PreparationDatapoint {
		return fmt.Sprintf("parameter %q: %v", e.Parameter, e.Err)
	}
	return fmt.Sprintf("parameter %q (datapoint %d): %v", e.Parameter, e.Datapoint, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(param string, datapoint int, err error) error {
	return &ConfigError{Parameter: param, Datapoint: datapoint, Err: err}
}
