package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zapflow/zapflow/pkg/models"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		variables models.Variables
		template  string
		expected  string
	}{
		{
			name:      "single substitution",
			variables: models.Variables{{Key: "Name", Value: "Bob"}},
			template:  "Hello {{Name}}!",
			expected:  "Hello Bob!",
		},
		{
			name:      "unmatched placeholder left intact",
			variables: models.Variables{},
			template:  "Hello {{Name}}!",
			expected:  "Hello {{Name}}!",
		},
		{
			name: "last write wins",
			variables: models.Variables{
				{Key: "X", Value: "1"},
				{Key: "X", Value: "2"},
			},
			template: "{{X}}",
			expected: "2",
		},
		{
			name: "multiple keys in one template",
			variables: models.Variables{
				{Key: "RepositoryName", Value: "zapflow"},
				{Key: "Owner", Value: "alice"},
			},
			template: "{{Owner}} created {{RepositoryName}}",
			expected: "alice created zapflow",
		},
		{
			name:      "repeated occurrences all replaced",
			variables: models.Variables{{Key: "A", Value: "x"}},
			template:  "{{A}}{{A}} {{A}}",
			expected:  "xx x",
		},
		{
			name:      "no recursive interpolation",
			variables: models.Variables{{Key: "A", Value: "{{B}}"}, {Key: "B", Value: "boom"}},
			template:  "{{A}}",
			expected:  "{{B}}",
		},
		{
			name:      "unterminated placeholder untouched",
			variables: models.Variables{{Key: "A", Value: "x"}},
			template:  "{{A",
			expected:  "{{A",
		},
		{
			name:      "no placeholders",
			variables: models.Variables{{Key: "A", Value: "x"}},
			template:  "plain text",
			expected:  "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Apply(tt.variables, tt.template))
		})
	}
}

func TestApplyPayload(t *testing.T) {
	variables := models.Variables{
		{Key: "Channel", Value: "general"},
		{Key: "Message", Value: "deploy done"},
	}

	payload := map[string]any{
		"channel": "#{{Channel}}",
		"body": map[string]any{
			"text": "{{Message}}",
		},
		"mentions": []any{"{{Channel}}", 42},
		"retries":  3,
		"enabled":  true,
	}

	result := ApplyPayload(variables, payload)

	assert.Equal(t, "#general", result["channel"])
	assert.Equal(t, "deploy done", result["body"].(map[string]any)["text"])
	assert.Equal(t, "general", result["mentions"].([]any)[0])
	assert.Equal(t, 42, result["mentions"].([]any)[1])
	assert.Equal(t, 3, result["retries"])
	assert.Equal(t, true, result["enabled"])
}

func TestApplyPayloadDoesNotMutateOriginal(t *testing.T) {
	variables := models.Variables{{Key: "X", Value: "1"}}
	payload := map[string]any{"a": "{{X}}"}

	_ = ApplyPayload(variables, payload)

	assert.Equal(t, "{{X}}", payload["a"])
}

func TestApplyPayloadNil(t *testing.T) {
	assert.Nil(t, ApplyPayload(nil, nil))
}
