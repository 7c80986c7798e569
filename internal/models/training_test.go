package models

import (
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/d2ai/model-trainer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelConfig_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want ModelConfig
	}{
		{
			name: "named fields only",
			json: `{"modelName":"demand-forecast","modelTrainingCodeName":"TOTEM","instanceType":"t3.small","maxRuntimeMinutes":10}`,
			want: ModelConfig{
				ModelName:             "demand-forecast",
				ModelTrainingCodeName: "TOTEM",
				InstanceType:          "t3.small",
				MaxRuntimeMinutes:     10,
			},
		},
		{
			name: "unknown keys become hyperparameters",
			json: `{"modelName":"demand-forecast","epochs":20,"learning_rate":0.01}`,
			want: ModelConfig{
				ModelName: "demand-forecast",
				Hyperparameters: map[string]any{
					"epochs":        float64(20),
					"learning_rate": 0.01,
				},
			},
		},
		{
			name: "wrongly typed named field is ignored",
			json: `{"modelName":"demand-forecast","maxRuntimeMinutes":"ten"}`,
			want: ModelConfig{
				ModelName: "demand-forecast",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ModelConfig
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFromMap_YAMLIntegers(t *testing.T) {
	// YAML decoding produces int, not float64
	cfg, err := ConfigFromMap(map[string]any{
		"modelName":         "demand-forecast",
		"maxRuntimeMinutes": 10,
		"epochs":            20,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxRuntimeMinutes)
	assert.Equal(t, 20, cfg.Hyperparameters["epochs"])
}

func TestModelConfig_AsMap_RoundTrip(t *testing.T) {
	cfg := ModelConfig{
		ModelName:             "demand-forecast",
		ModelTrainingCodeName: "DEMO",
		MaxRuntimeMinutes:     10,
		Hyperparameters: map[string]any{
			"epochs": float64(20),
		},
	}

	m := cfg.AsMap()
	assert.Equal(t, "demand-forecast", m["modelName"])
	assert.Equal(t, "DEMO", m["modelTrainingCodeName"])
	assert.Equal(t, 10, m["maxRuntimeMinutes"])
	assert.Equal(t, float64(20), m["epochs"])

	// No named field leaks into hyperparameters on re-parse
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	var parsed ModelConfig
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, cfg.ModelName, parsed.ModelName)
	assert.NotContains(t, parsed.Hyperparameters, "modelName")
}

func TestModelConfig_Validate(t *testing.T) {
	err := ModelConfig{}.Validate()
	assert.True(t, errors.Is(err, apperrors.ErrMissingModelConfig))

	assert.NoError(t, ModelConfig{ModelName: "demand-forecast"}.Validate())

	// Machine shape and runtime are not constrained here
	assert.NoError(t, ModelConfig{
		ModelName:         "demand-forecast",
		InstanceType:      "p5.48xlarge",
		MaxRuntimeMinutes: 100000,
	}.Validate())
}
