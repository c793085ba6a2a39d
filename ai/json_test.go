package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse_StripsCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "bare fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "no fence",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounding whitespace",
			input: "  \n{\"a\": 1}\n  ",
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONResponse(tt.input))
		})
	}
}

func TestCleanJSONResponse_RepairsMissingKeyQuote(t *testing.T) {
	broken := `{"concepts": [{name": "paris", type": "place"}]}`

	cleaned := CleanJSONResponse(broken)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &parsed), "repaired JSON should parse: %s", cleaned)
}

func TestCleanJSONResponse_LeavesValidJSONAlone(t *testing.T) {
	valid := `{"concepts": [{"name": "paris", "category": "place", "description": "capital of France"}]}`

	assert.Equal(t, valid, CleanJSONResponse(valid))
}
