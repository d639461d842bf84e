package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// reply is the JSON object the model is asked to produce.
type reply struct {
	Thought     string          `json:"thought"`
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input"`
}

var errNoJSON = errors.New("no JSON object found in reply")

// parseReply extracts the action from a model reply. Code fences and
// prose around the JSON object are tolerated.
func parseReply(text string) (Step, error) {
	raw, err := extractObject(text)
	if err != nil {
		return Step{}, err
	}

	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Step{}, fmt.Errorf("invalid JSON: %w", err)
	}

	step := Step{
		Thought:     strings.TrimSpace(r.Thought),
		Action:      Action(strings.ToLower(strings.TrimSpace(r.Action))),
		ActionInput: strings.TrimSpace(inputString(r.ActionInput)),
	}
	if step.Action == "" {
		return step, errors.New(`reply has no "action" field`)
	}
	if !step.Action.valid() {
		return step, fmt.Errorf("unknown action %q; valid actions are %s", step.Action, actionList())
	}
	return step, nil
}

// extractObject returns the outermost {...} span of text.
func extractObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

// inputString accepts a JSON string, or an object carrying the input under
// a conventional key, or any other JSON value verbatim.
func inputString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, k := range []string{"sql", "query", "answer", "tables", "table_names", "input"} {
			switch v := obj[k].(type) {
			case string:
				return v
			case []any:
				parts := make([]string, 0, len(v))
				for _, p := range v {
					parts = append(parts, fmt.Sprint(p))
				}
				return strings.Join(parts, ", ")
			}
		}
	}

	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, p := range list {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	}

	return string(raw)
}

func actionList() string {
	names := make([]string, len(knownActions))
	for i, a := range knownActions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
