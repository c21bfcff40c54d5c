package parser

import (
	"fmt"
	"time"

	"github.com/frontiercc/campfire/pkg/logstore"
)

// Detector auto-detects and parses log formats
type Detector struct {
	parsers []Parser
}

// NewDetector creates a new format detector
func NewDetector() *Detector {
	return &Detector{
		parsers: []Parser{
			NewLogfmtParser(), // Try logfmt first (key=value)
			NewJSONParser(),   // Then generic JSON
		},
	}
}

// Parse attempts to parse a line with auto-detection
func (d *Detector) Parse(line string) (logstore.Entry, error) {
	// Try each parser
	for _, parser := range d.parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}

	// If no parser worked, keep the whole line as an INFO message
	return logstore.NewEntryAt(timeNow(), logstore.LevelInfo, DefaultTag, line, ""), nil
}

// ParseWithFormat parses a line with a specific format
func (d *Detector) ParseWithFormat(line, format string) (logstore.Entry, error) {
	var parser Parser

	switch format {
	case "json":
		parser = NewJSONParser()
	case "logfmt":
		parser = NewLogfmtParser()
	case "auto":
		return d.Parse(line)
	default:
		return logstore.Entry{}, fmt.Errorf("unknown format: %s", format)
	}

	if !parser.CanParse(line) {
		return logstore.Entry{}, fmt.Errorf("line does not match format %s", format)
	}

	return parser.Parse(line)
}

// timeNow is a helper for testing
var timeNow = func() time.Time {
	return time.Now()
}
