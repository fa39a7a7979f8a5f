// Package validate turns raw model output into checked response records.
// Manual and automated responses go through the same entry point; a
// response either passes as a whole or is rejected as a whole.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/prompt"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// resolveSchema is replaced in tests.
var resolveSchema = prompt.Resolved

// Record is one validated response record.
type Record struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Category models.Category `json:"category,omitempty"`
	Kind     models.Kind     `json:"kind,omitempty"`
	Fields   map[string]any  `json:"fields,omitempty"`
}

// Response is a validated response envelope.
type Response struct {
	Task    string   `json:"-"`
	Chunk   int      `json:"-"`
	Records []Record `json:"records"`
}

// Validate strips wrappers from raw, parses it and checks it against the
// task's response schema and mandatory identifiers. Errors are
// ValidationFailed and carry the task id and chunk index.
func Validate(raw string, task tasks.AgentTask, chunk int) (*Response, error) {
	fail := func(format string, args ...any) error {
		return failure.New(failure.ValidationFailed, format, args...).At(task.ID, chunk)
	}

	body, err := Strip(raw)
	if err != nil {
		return nil, failure.Wrap(failure.ValidationFailed, err, "strip response").At(task.ID, chunk)
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fail("parse response: %v", err)
	}
	dropNullIdentity(doc)

	rs, err := resolveSchema(task)
	if err != nil {
		return nil, failure.Wrap(failure.ValidationFailed, err, "schema").At(task.ID, chunk)
	}
	if err := rs.Validate(doc); err != nil {
		return nil, fail("schema: %v", err)
	}

	// Re-encode the normalized document so typed decoding sees the same data.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fail("re-encode response: %v", err)
	}
	resp := &Response{Task: task.ID, Chunk: chunk}
	if err := json.Unmarshal(normalized, resp); err != nil {
		return nil, fail("decode response: %v", err)
	}

	for i := range resp.Records {
		r := &resp.Records[i]
		r.ID = strings.TrimSpace(r.ID)
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fail("record %d has no name", i)
		}
		if task.RequiresID && r.ID == "" {
			return nil, fail("record %d (%s) has no id", i, r.Name)
		}
	}
	return resp, nil
}

// Strip returns the JSON object contained in raw. It removes code fences
// and leading or trailing prose. A bare array of records is wrapped into
// the records envelope.
func Strip(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty response")
	}
	if gjson.Valid(s) {
		return wrapArray(s), nil
	}

	if fenced, ok := fencedBlock(s); ok && gjson.Valid(fenced) {
		return wrapArray(fenced), nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		candidate := s[start : end+1]
		if gjson.Valid(candidate) {
			return candidate, nil
		}
	}

	start = strings.Index(s, "[")
	end = strings.LastIndex(s, "]")
	if start != -1 && end > start {
		candidate := s[start : end+1]
		if gjson.Valid(candidate) {
			return wrapArray(candidate), nil
		}
	}

	return "", fmt.Errorf("no JSON object found in response: %s", truncate(s, 120))
}

func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start == -1 {
		return "", false
	}
	rest := s[start+3:]
	// Skip the language tag line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

func wrapArray(s string) string {
	if gjson.Parse(s).IsArray() {
		return `{"records":` + s + `}`
	}
	return s
}

// dropNullIdentity removes null id, category and kind values so that
// "absent" and "null" validate the same way.
func dropNullIdentity(doc any) {
	root, ok := doc.(map[string]any)
	if !ok {
		return
	}
	records, ok := root["records"].([]any)
	if !ok {
		return
	}
	for _, r := range records {
		rec, ok := r.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"id", "category", "kind", "fields"} {
			if v, present := rec[key]; present && v == nil {
				delete(rec, key)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
