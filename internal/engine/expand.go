package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stackpilot-io/stackpilot/internal/ir"
)

// ExpandSpecs flattens specs carrying Count or ForEach into individual
// resources. Must run before the graph is built so every node is concrete.
func ExpandSpecs(specs []*ir.ResourceSpec) []*ir.ResourceSpec {
	var expanded []*ir.ResourceSpec

	for _, spec := range specs {
		switch {
		case spec.Count > 0:
			for i := 0; i < spec.Count; i++ {
				clone := cloneSpec(spec)
				clone.Name = fmt.Sprintf("%s[%d]", spec.Name, i)
				clone.Params = substituteParams(clone.Params, map[string]string{
					"${index}": strconv.Itoa(i),
				})
				expanded = append(expanded, clone)
			}
		case len(spec.ForEach) > 0:
			keys := make([]string, 0, len(spec.ForEach))
			for k := range spec.ForEach {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				clone := cloneSpec(spec)
				clone.Name = fmt.Sprintf("%s[%q]", spec.Name, key)
				clone.Params = substituteParams(clone.Params, map[string]string{
					"${each.key}":   key,
					"${each.value}": spec.ForEach[key],
				})
				expanded = append(expanded, clone)
			}
		default:
			expanded = append(expanded, spec)
		}
	}

	return expanded
}

func cloneSpec(spec *ir.ResourceSpec) *ir.ResourceSpec {
	return &ir.ResourceSpec{
		Name:      spec.Name,
		Kind:      spec.Kind,
		DependsOn: append([]string{}, spec.DependsOn...),
		Params:    substituteParams(spec.Params, nil),
	}
}

// substituteParams deep-copies params, replacing placeholder tokens in all
// string values. A nil replacement map makes it a plain deep copy.
func substituteParams(params map[string]any, repl map[string]string) map[string]any {
	if params == nil {
		return nil
	}
	return substitute(params, repl).(map[string]any)
}

func substitute(v any, repl map[string]string) any {
	switch val := v.(type) {
	case string:
		for token, value := range repl {
			val = strings.ReplaceAll(val, token, value)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = substitute(inner, repl)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = substitute(inner, repl)
		}
		return out
	default:
		return v
	}
}
