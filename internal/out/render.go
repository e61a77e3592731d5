package out

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/ggonzalez94/defi-sentinel/internal/config"
	"github.com/ggonzalez94/defi-sentinel/internal/model"
)

// Texter values render as their own text in plain mode.
type Texter interface {
	PlainText() string
}

// Render writes env to w. JSON output is indented; plain output prints one
// line per item. Projection with SelectFields applies to the data payload
// only and accepts dotted paths into nested objects.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}
	plain := settings.OutputMode == "plain"

	switch {
	case settings.ResultsOnly && plain:
		return writePlain(w, data)
	case settings.ResultsOnly:
		return writeJSON(w, data)
	case !plain:
		env.Data = data
		return writeJSON(w, env)
	case env.Error != nil:
		_, err := fmt.Fprintf(w, "error[%s] code=%d: %s\n", env.Error.Type, env.Error.Code, env.Error.Message)
		return err
	}

	if err := writePlain(w, data); err != nil {
		return err
	}
	for _, warning := range env.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePlain(w io.Writer, data any) error {
	if t, ok := data.(Texter); ok {
		_, err := fmt.Fprintln(w, t.PlainText())
		return err
	}
	v := reflect.ValueOf(data)
	if !v.IsValid() {
		_, err := fmt.Fprintln(w, "null")
		return err
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		_, err := fmt.Fprintln(w, plainLine(data))
		return err
	}
	if v.Len() == 0 {
		_, err := fmt.Fprintln(w, "[]")
		return err
	}
	for i := 0; i < v.Len(); i++ {
		if _, err := fmt.Fprintln(w, plainLine(v.Index(i).Interface())); err != nil {
			return err
		}
	}
	return nil
}

// plainLine renders Texters verbatim and everything else as sorted
// key=value pairs.
func plainLine(item any) string {
	if t, ok := item.(Texter); ok {
		return t.PlainText()
	}
	switch t := normalizeValue(item).(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+scalar(t[k]))
		}
		return strings.Join(parts, " ")
	default:
		return scalar(t)
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case map[string]any, []any:
		buf, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(buf)
	default:
		return fmt.Sprint(t)
	}
}

func project(data any, fields []string) any {
	switch t := normalizeValue(data).(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, projectMap(m, fields))
			}
		}
		return out
	case map[string]any:
		return projectMap(t, fields)
	default:
		return t
	}
}

// projectMap keeps each field under its full path name, so "action.token"
// becomes a top-level "action.token" key.
func projectMap(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := lookupPath(m, f); ok {
			out[f] = v
		}
	}
	return out
}

func lookupPath(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}
