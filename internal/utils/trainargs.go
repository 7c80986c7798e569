package utils

import (
	"fmt"
	"maps"
	"slices"
)

// MergeTrainingArgs merges hyperparameter maps with later maps taking
// precedence and flattens the result into deterministic, sorted
// --key value pairs for the training container command line.
func MergeTrainingArgs(pp ...map[string]any) []string {
	m := map[string]any{}
	for _, p := range pp {
		maps.Copy(m, p)
	}

	var results []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		results = append(results, "--"+k, fmt.Sprintf("%v", m[k]))
	}

	return results
}
