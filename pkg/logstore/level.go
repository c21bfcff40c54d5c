package logstore

import (
	"encoding/json"
	"strings"
)

// Level is an ordered log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// Levels lists all severities in ascending order.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarning, LevelError}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel converts a level name to a Level. Common aliases
// (WARN, ERR, DBG) are accepted. Unknown names map to INFO.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "DBG", "TRACE":
		return LevelDebug, true
	case "INFO", "INFORMATION":
		return LevelInfo, true
	case "WARNING", "WARN":
		return LevelWarning, true
	case "ERROR", "ERR", "FATAL", "CRITICAL":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// MarshalJSON encodes the level as its name string.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name. Unknown names decode to INFO so
// snapshots written by newer versions still load.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, _ := ParseLevel(name)
	*l = parsed
	return nil
}
