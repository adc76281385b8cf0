package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiledSchemas caches compiled validators by schema text.
var compiledSchemas sync.Map

// ParseStructured extracts a JSON document from model output and validates it
// against schemaRaw. Code fences and surrounding prose are tolerated.
func ParseStructured(schemaRaw json.RawMessage, content string) (json.RawMessage, error) {
	parsed, err := parseStructuredJSON(content)
	if err != nil {
		return nil, err
	}
	if err := validateStructuredJSON(schemaRaw, parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// parseStructuredJSON parses JSON from model output, with lightweight recovery
// for markdown code fences and surrounding text.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		normalized, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize structured output: %w", err)
		}
		return normalized, nil
	}
	return nil, fmt.Errorf("failed to parse structured JSON")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONCandidate returns the span from the first '{' or '[' to the
// matching last closer.
func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if trimmed[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(trimmed, closer)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// validateStructuredJSON validates parsed JSON against the schema. An empty
// schema accepts anything.
func validateStructuredJSON(schemaRaw, parsed json.RawMessage) error {
	if len(schemaRaw) == 0 || len(parsed) == 0 {
		return nil
	}
	schema, err := compileSchema(schemaRaw)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return fmt.Errorf("failed to decode structured JSON for validation: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaRaw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaRaw)
	if cached, ok := compiledSchemas.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}

	core, err := extractValidationSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(core)); err != nil {
		return nil, fmt.Errorf("failed to load structured schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile structured schema: %w", err)
	}
	compiledSchemas.Store(key, schema)
	return schema, nil
}

// extractValidationSchema unwraps {"name","strict","schema":{...}} wrappers.
func extractValidationSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid structured schema JSON: %w", err)
	}
	if inner, ok := root["schema"]; ok {
		return inner, nil
	}
	return schemaRaw, nil
}

// RepairPrompt asks the model to fix output that failed validation.
func RepairPrompt(schemaRaw json.RawMessage, lastOutput string, issue error) string {
	lastOutput = strings.TrimSpace(lastOutput)
	if len(lastOutput) > 2000 {
		lastOutput = lastOutput[:2000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Validation issue:
%v`, string(schemaRaw), lastOutput, issue)
}
