package models

import (
	"encoding/json"

	apperrors "github.com/d2ai/model-trainer/internal/errors"
)

// Keys interpreted by this service. Everything else in a modelConfig payload
// is an opaque hyperparameter passed through to the training container.
const (
	keyModelName         = "modelName"
	keyCodeName          = "modelTrainingCodeName"
	keyInstanceType      = "instanceType"
	keyMaxRuntimeMinutes = "maxRuntimeMinutes"
)

// ModelConfig is the job configuration submitted by a caller. The named
// fields are validated and consumed here; Hyperparameters collects every
// unrecognized key verbatim.
type ModelConfig struct {
	ModelName             string
	ModelTrainingCodeName string
	InstanceType          string
	MaxRuntimeMinutes     int
	Hyperparameters       map[string]any
}

func (c *ModelConfig) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cfg, err := ConfigFromMap(raw)
	if err != nil {
		return err
	}
	*c = cfg
	return nil
}

// ConfigFromMap builds a ModelConfig from an already-decoded open record,
// such as a parsed JSON or YAML document. Numeric values arrive as float64
// from JSON and as int from YAML; both are accepted.
func ConfigFromMap(raw map[string]any) (ModelConfig, error) {
	var c ModelConfig
	for k, v := range raw {
		switch k {
		case keyModelName:
			if s, ok := v.(string); ok {
				c.ModelName = s
			}
		case keyCodeName:
			if s, ok := v.(string); ok {
				c.ModelTrainingCodeName = s
			}
		case keyInstanceType:
			if s, ok := v.(string); ok {
				c.InstanceType = s
			}
		case keyMaxRuntimeMinutes:
			switch n := v.(type) {
			case float64:
				c.MaxRuntimeMinutes = int(n)
			case int:
				c.MaxRuntimeMinutes = n
			}
		default:
			if c.Hyperparameters == nil {
				c.Hyperparameters = map[string]any{}
			}
			c.Hyperparameters[k] = v
		}
	}
	return c, nil
}

func (c ModelConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.AsMap())
}

// AsMap flattens the config back into the open-record shape it arrived in.
// This is the form persisted on the instance record.
func (c ModelConfig) AsMap() map[string]any {
	m := map[string]any{}
	for k, v := range c.Hyperparameters {
		m[k] = v
	}
	if c.ModelName != "" {
		m[keyModelName] = c.ModelName
	}
	if c.ModelTrainingCodeName != "" {
		m[keyCodeName] = c.ModelTrainingCodeName
	}
	if c.InstanceType != "" {
		m[keyInstanceType] = c.InstanceType
	}
	if c.MaxRuntimeMinutes != 0 {
		m[keyMaxRuntimeMinutes] = c.MaxRuntimeMinutes
	}
	return m
}

// Validate rejects configs with no model name before any external call is
// made. Machine shape and runtime are deliberately not constrained; they
// fall back to service defaults instead.
func (c ModelConfig) Validate() error {
	if c.ModelName == "" {
		return apperrors.ErrMissingModelConfig
	}
	return nil
}
