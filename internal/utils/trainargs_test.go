package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeTrainingArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []map[string]any
		want []string
	}{
		{
			name: "nil input",
			in:   nil,
			want: nil,
		},
		{
			name: "single map sorted by key",
			in: []map[string]any{
				{"learning_rate": 0.01, "epochs": 20},
			},
			want: []string{"--epochs", "20", "--learning_rate", "0.01"},
		},
		{
			name: "later maps take precedence",
			in: []map[string]any{
				{"epochs": 20, "batch_size": 32},
				{"epochs": 50},
			},
			want: []string{"--batch_size", "32", "--epochs", "50"},
		},
		{
			name: "mixed value types",
			in: []map[string]any{
				{"verbose": true, "name": "demand-forecast"},
			},
			want: []string{"--name", "demand-forecast", "--verbose", "true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeTrainingArgs(tt.in...)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeTrainingArgs_Deterministic(t *testing.T) {
	in := map[string]any{"c": 3, "a": 1, "b": 2}
	first := MergeTrainingArgs(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, MergeTrainingArgs(in))
	}
}
