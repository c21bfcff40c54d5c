// Package parser turns raw log lines into structured entries,
// auto-detecting JSON and logfmt input.
package parser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/frontiercc/campfire/pkg/logstore"
)

// DefaultTag is assigned to entries whose line carries no
// source/tag/component field of its own.
const DefaultTag = "stdin"

// Parser interface for different log formats
type Parser interface {
	Parse(line string) (logstore.Entry, error)
	CanParse(line string) bool
}

// JSONParser handles standard JSON logs
type JSONParser struct{}

// NewJSONParser creates a new JSON parser
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// CanParse checks if the line is valid JSON
func (p *JSONParser) CanParse(line string) bool {
	var obj map[string]interface{}
	return json.Unmarshal([]byte(line), &obj) == nil
}

// Parse parses a JSON log line
func (p *JSONParser) Parse(line string) (logstore.Entry, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return logstore.Entry{}, err
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		fields[k] = fmt.Sprintf("%v", v)
	}

	return buildEntry(fields), nil
}

// LogfmtParser handles key=value log format (logfmt)
type LogfmtParser struct{}

// NewLogfmtParser creates a new logfmt parser
func NewLogfmtParser() *LogfmtParser {
	return &LogfmtParser{}
}

// CanParse checks if the line looks like logfmt (key=value pairs)
func (p *LogfmtParser) CanParse(line string) bool {
	// Must contain at least a msg= or level= to be logfmt
	has := func(key string) bool {
		return strings.Contains(line, key+"=")
	}
	return has("msg") || (has("level") && (has("source") || has("time") || has("error")))
}

// Parse parses a logfmt line into an entry
func (p *LogfmtParser) Parse(line string) (logstore.Entry, error) {
	return buildEntry(parseLogfmt(line)), nil
}

// buildEntry maps well-known field names onto the entry schema and
// folds any leftover fields into the message so nothing is dropped.
func buildEntry(fields map[string]string) logstore.Entry {
	ts := extractTime(fields)

	level := logstore.LevelInfo
	if v, ok := takeFirst(fields, "level", "severity"); ok {
		level, _ = logstore.ParseLevel(v)
	}

	message, _ := takeFirst(fields, "message", "msg")

	tag := DefaultTag
	if v, ok := takeFirst(fields, "tag", "source", "component", "logger"); ok && v != "" {
		tag = v
	}

	exception, _ := takeFirst(fields, "exception", "error", "stacktrace")

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		extras := make([]string, 0, len(keys))
		for _, k := range keys {
			extras = append(extras, fmt.Sprintf("%s=%s", k, fields[k]))
		}
		if message != "" {
			message += " "
		}
		message += strings.Join(extras, " ")
	}

	return logstore.NewEntryAt(ts, level, tag, message, exception)
}

// extractTime pulls a timestamp out of the field map, accepting
// RFC3339 and epoch milliseconds, defaulting to now.
func extractTime(fields map[string]string) time.Time {
	v, ok := takeFirst(fields, "time", "timestamp", "ts")
	if !ok {
		return timeNow()
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	var ms int64
	if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && ms > 1_000_000_000_000 {
		return time.UnixMilli(ms)
	}
	return timeNow()
}

// takeFirst removes and returns the first present key from fields.
func takeFirst(fields map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			delete(fields, k)
			return v, true
		}
	}
	return "", false
}

// parseLogfmt parses a logfmt-style line into key-value pairs.
// Handles: key=value, key="quoted value", key="value with \"escapes\""
func parseLogfmt(line string) map[string]string {
	result := make(map[string]string)
	i := 0
	n := len(line)

	for i < n {
		// Skip whitespace
		for i < n && line[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}

		// Read key
		keyStart := i
		for i < n && line[i] != '=' && line[i] != ' ' {
			i++
		}
		if i >= n || line[i] != '=' {
			continue
		}
		key := line[keyStart:i]
		i++ // skip '='

		if i >= n {
			result[key] = ""
			break
		}

		// Read value
		var value string
		if line[i] == '"' {
			// Quoted value
			i++ // skip opening quote
			var b strings.Builder
			for i < n {
				if line[i] == '\\' && i+1 < n {
					b.WriteByte(line[i+1])
					i += 2
				} else if line[i] == '"' {
					i++ // skip closing quote
					break
				} else {
					b.WriteByte(line[i])
					i++
				}
			}
			value = b.String()
		} else {
			// Unquoted value
			valStart := i
			for i < n && line[i] != ' ' {
				i++
			}
			value = line[valStart:i]
		}

		result[key] = value
	}

	return result
}
