// Package interpolation substitutes {{Key}} placeholders in step payloads
// using the variables accumulated from earlier steps in the same run.
package interpolation

import (
	"strings"

	"github.com/zapflow/zapflow/pkg/models"
)

// Apply replaces every literal occurrence of {{key}} in template with the
// variable's value, iterating left-to-right over the variable list so that a
// later variable with the same key wins. Substitution is a single pass: a
// substituted value is never re-scanned for placeholders. Placeholders whose
// key never appears in the variable set are left intact.
func Apply(variables models.Variables, template string) string {
	if len(variables) == 0 || !strings.Contains(template, "{{") {
		return template
	}

	// Split on placeholders once so values containing "{{Key}}" text are not
	// picked up by a later variable in the list.
	segments := splitPlaceholders(template)

	values := make(map[string]string, len(variables))
	for _, v := range variables {
		values[v.Key] = v.Value
	}

	var out strings.Builder

	for _, seg := range segments {
		if seg.key == "" {
			out.WriteString(seg.text)

			continue
		}

		if value, ok := values[seg.key]; ok {
			out.WriteString(value)
		} else {
			out.WriteString(seg.text)
		}
	}

	return out.String()
}

// ApplyPayload returns a copy of payload with every string field passed
// through Apply. Nested maps and slices are walked; non-string values pass
// through unchanged.
func ApplyPayload(variables models.Variables, payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = applyValue(variables, value)
	}

	return out
}

func applyValue(variables models.Variables, value any) any {
	switch v := value.(type) {
	case string:
		return Apply(variables, v)
	case map[string]any:
		return ApplyPayload(variables, v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = applyValue(variables, item)
		}

		return out
	default:
		return value
	}
}

type segment struct {
	text string // literal text, including the raw placeholder when unmatched
	key  string // non-empty when this segment is a placeholder
}

func splitPlaceholders(template string) []segment {
	var segments []segment

	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}

		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			break
		}

		if start > 0 {
			segments = append(segments, segment{text: rest[:start]})
		}

		raw := rest[start : start+2+end+2]
		key := rest[start+2 : start+2+end]
		segments = append(segments, segment{text: raw, key: key})

		rest = rest[start+2+end+2:]
	}

	if rest != "" {
		segments = append(segments, segment{text: rest})
	}

	return segments
}
