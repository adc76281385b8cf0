package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var wordsSchema = json.RawMessage(`{
	"type":"object",
	"properties":{
		"words":{"type":"array","items":{"type":"string"},"minItems":1}
	},
	"required":["words"],
	"additionalProperties":false
}`)

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", `{"words":["a"]}`, `{"words":["a"]}`, false},
		{"code fence", "```json\n{\"words\":[\"a\"]}\n```", `{"words":["a"]}`, false},
		{"surrounding prose", `Sure! {"words":["a","b"]} Hope that helps.`, `{"words":["a","b"]}`, false},
		{"wrapped schema", `{"words":["x"]}`, `{"words":["x"]}`, false},
		{"not json", "a, b, c", "", true},
		{"schema violation", `{"words":[]}`, "", true},
		{"extra property", `{"words":["a"],"why":"x"}`, "", true},
		{"empty", "   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := wordsSchema
			if tt.name == "wrapped schema" {
				schema = json.RawMessage(`{"name":"w","strict":true,"schema":` + string(wordsSchema) + `}`)
			}
			got, err := ParseStructured(schema, tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStructured() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("ParseStructured() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRepairPrompt(t *testing.T) {
	prompt := RepairPrompt(wordsSchema, strings.Repeat("x", 3000), errors.New("missing words"))
	if !strings.Contains(prompt, "missing words") || !strings.Contains(prompt, "[truncated]") {
		t.Errorf("prompt = %q", prompt)
	}
}
