package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/ggonzalez94/defi-sentinel/internal/id"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")

type actionPlan struct {
	rawKind string
	params  map[string]any
}

// parseStructured looks for a usable action_plan. repaired reports whether
// the object only parsed after repair.
func parseStructured(text string) (plan actionPlan, ok bool, repaired bool) {
	obj, repaired, ok := decodeObject(text)
	if !ok {
		return actionPlan{}, false, false
	}
	plan, ok = readActionPlan(obj)
	return plan, ok, repaired
}

func decodeObject(text string) (map[string]any, bool, bool) {
	if obj, ok := unmarshalObject(text); ok {
		return obj, false, true
	}
	candidate := candidateObject(text)
	if candidate == "" {
		return nil, false, false
	}
	if obj, ok := unmarshalObject(candidate); ok {
		return obj, false, true
	}
	fixed, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, false, false
	}
	obj, ok := unmarshalObject(fixed)
	return obj, true, ok
}

func candidateObject(text string) string {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(text, "}")
	if end <= start {
		return text[start:]
	}
	return text[start : end+1]
}

func unmarshalObject(text string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return obj, true
}

func readActionPlan(obj map[string]any) (actionPlan, bool) {
	raw, ok := obj["action_plan"]
	if !ok {
		return actionPlan{}, false
	}
	var entry map[string]any
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return actionPlan{}, false
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return actionPlan{}, false
		}
		entry = first
	case map[string]any:
		entry = v
	default:
		return actionPlan{}, false
	}

	kind := ""
	for _, key := range []string{"action", "action_type"} {
		if s, ok := entry[key].(string); ok && strings.TrimSpace(s) != "" {
			kind = strings.TrimSpace(s)
			break
		}
	}
	if kind == "" {
		return actionPlan{}, false
	}
	params := map[string]any{}
	if p, ok := entry["parameters"].(map[string]any); ok {
		for k, v := range p {
			params[k] = v
		}
	}
	return actionPlan{rawKind: kind, params: params}, true
}

// stringify renders a decoded JSON value as a parameter string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case json.Number:
		return numberString(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSpace(buf.String())
	}
}

func numberString(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return s
	}
	if r.IsInt() {
		return r.Num().String()
	}
	return id.FormatRat(r)
}
