package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/goccy/go-json"
)

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of every command.
type Response struct {
	Status  string `json:"status"` // "ok" or "error"
	Command string `json:"command,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (f *OutputFormatter) Success(command string, data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Command: command, Data: data})
	}

	fields, err := flatten(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "✅ %s complete\n", command)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(f.Writer, "  %-18s %v\n", k, fields[k])
	}
	return nil
}

// Error writes the JSON error envelope. Text mode leaves errors to the caller's stderr.
func (f *OutputFormatter) Error(err error) error {
	return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: err.Error()})
}

// flatten turns a summary into dotted key/value pairs through its JSON form.
func flatten(data any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	out := map[string]any{}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if nested, ok := v.(map[string]any); ok {
				walk(prefix+k+".", nested)
				continue
			}
			out[prefix+k] = v
		}
	}
	walk("", m)
	return out, nil
}
