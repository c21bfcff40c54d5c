// Package query implements a small Lucene-style filter language over
// log entries, used by the viewer's query endpoint. Supported syntax:
// field:value, quoted exact values, * wildcards, AND/OR/NOT, grouping
// parentheses, bare keywords, and timestamp:[start TO end] ranges with
// relative bounds like now-7d.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/frontiercc/campfire/pkg/logstore"
)

// Query represents a parsed query.
type Query struct {
	filters []Filter
}

// Filter represents a query filter condition.
type Filter interface {
	Match(entry logstore.Entry) bool
}

// Parse parses a query string. "" and "*" match everything.
func Parse(queryStr string) (*Query, error) {
	if queryStr == "" || queryStr == "*" {
		return &Query{filters: []Filter{&AllFilter{}}}, nil
	}

	parser := &parser{
		input: queryStr,
		pos:   0,
	}

	filter, err := parser.parse()
	if err != nil {
		return nil, err
	}

	return &Query{filters: []Filter{filter}}, nil
}

// Match checks if an entry matches the query.
func (q *Query) Match(entry logstore.Entry) bool {
	for _, filter := range q.filters {
		if !filter.Match(entry) {
			return false
		}
	}
	return true
}

// parser implements a simple recursive-descent query parser
type parser struct {
	input string
	pos   int
}

func (p *parser) parse() (Filter, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Filter, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		if p.peek("OR") {
			p.consume(2)
			p.skipWhitespace()
			right, err := p.parseAnd()
			if err != nil {
				return nil, err
			}
			left = &OrFilter{Left: left, Right: right}
		} else {
			break
		}
	}

	return left, nil
}

func (p *parser) parseAnd() (Filter, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		if p.peek("AND") {
			p.consume(3)
			p.skipWhitespace()
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			left = &AndFilter{Left: left, Right: right}
		} else if p.pos < len(p.input) && !p.peek("OR") && !p.peek(")") {
			// Implicit AND
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			left = &AndFilter{Left: left, Right: right}
		} else {
			break
		}
	}

	return left, nil
}

func (p *parser) parseNot() (Filter, error) {
	p.skipWhitespace()
	if p.peek("NOT") {
		p.consume(3)
		p.skipWhitespace()
		filter, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &NotFilter{Filter: filter}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Filter, error) {
	p.skipWhitespace()

	// Handle parentheses
	if p.peekChar('(') {
		p.consume(1)
		filter, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipWhitespace()
		if !p.peekChar(')') {
			return nil, fmt.Errorf("expected closing parenthesis")
		}
		p.consume(1)
		return filter, nil
	}

	// Parse field:value or keyword
	token := p.readToken()
	if token == "" {
		return nil, fmt.Errorf("unexpected end of query")
	}

	// Check for field:value syntax
	if strings.Contains(token, ":") {
		parts := strings.SplitN(token, ":", 2)
		field := parts[0]
		value := parts[1]

		if !knownField(field) {
			return nil, fmt.Errorf("unknown field: %s", field)
		}

		// Handle range queries
		if strings.HasPrefix(value, "[") {
			return p.parseRange(field, value)
		}

		// Handle quoted strings
		if strings.HasPrefix(value, "\"") {
			value = strings.Trim(value, "\"")
			return &FieldFilter{Field: field, Value: value, Exact: true}, nil
		}

		// Handle wildcards
		if strings.Contains(value, "*") {
			return &WildcardFilter{Field: field, Pattern: value}, nil
		}

		return &FieldFilter{Field: field, Value: value, Exact: false}, nil
	}

	// Keyword search (searches tag, message, and exception)
	return &KeywordFilter{Keyword: token}, nil
}

func knownField(field string) bool {
	switch field {
	case "id", "level", "tag", "message", "exception", "timestamp":
		return true
	}
	return false
}

// fieldValue extracts an entry field by name.
func fieldValue(entry logstore.Entry, field string) string {
	switch field {
	case "id":
		return entry.ID
	case "level":
		return entry.Level.String()
	case "tag":
		return entry.Tag
	case "message":
		return entry.Message
	case "exception":
		return entry.Exception
	case "timestamp":
		return strconv.FormatInt(entry.Timestamp, 10)
	}
	return ""
}

func (p *parser) parseRange(field, rangeStr string) (Filter, error) {
	if field != "timestamp" {
		return nil, fmt.Errorf("range queries are only supported on timestamp")
	}

	// Range format: [start TO end]
	rangeStr = strings.TrimPrefix(rangeStr, "[")
	rangeStr = strings.TrimSuffix(rangeStr, "]")

	parts := strings.Split(rangeStr, " TO ")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid range format")
	}

	return &TimestampRangeFilter{
		Start: p.parseTimeValue(strings.TrimSpace(parts[0])),
		End:   p.parseTimeValue(strings.TrimSpace(parts[1])),
	}, nil
}

// reDay matches a number followed by 'd' (days), e.g. "7d".
var reDay = regexp.MustCompile(`(\d+)d`)

// reWeek matches a number followed by 'w' (weeks), e.g. "2w".
var reWeek = regexp.MustCompile(`(\d+)w`)

// parseDurationExtended extends time.ParseDuration to support day ('d')
// and week ('w') units by converting them to hours before parsing.
func parseDurationExtended(s string) (time.Duration, error) {
	s = reDay.ReplaceAllStringFunc(s, func(m string) string {
		n, _ := strconv.Atoi(m[:len(m)-1])
		return fmt.Sprintf("%dh", n*24)
	})
	s = reWeek.ReplaceAllStringFunc(s, func(m string) string {
		n, _ := strconv.Atoi(m[:len(m)-1])
		return fmt.Sprintf("%dh", n*7*24)
	})
	return time.ParseDuration(s)
}

func (p *parser) parseTimeValue(val string) time.Time {
	// Handle relative time (e.g., now-1h, now-7d, now-2w)
	if strings.HasPrefix(val, "now") {
		duration := strings.TrimPrefix(val, "now")
		if duration == "" {
			return time.Now()
		}
		duration = strings.TrimPrefix(duration, "-")
		if d, err := parseDurationExtended(duration); err == nil {
			return time.Now().Add(-d)
		}
	}

	// Parse absolute RFC3339 timestamp
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}

	// Parse datetime without timezone (assume UTC)
	if t, err := time.Parse("2006-01-02T15:04:05", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	}

	// Parse date-only string (start of day UTC)
	if t, err := time.Parse("2006-01-02", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	// Parse epoch milliseconds (values > 1e12 are clearly milliseconds, not seconds)
	if ms, err := strconv.ParseInt(val, 10, 64); err == nil && ms > 1_000_000_000_000 {
		return time.UnixMilli(ms).UTC()
	}

	return time.Time{}
}

func (p *parser) readToken() string {
	start := p.pos

	// Handle quoted strings
	if p.peekChar('"') {
		p.consume(1)
		for p.pos < len(p.input) && !p.peekChar('"') {
			p.pos++
		}
		if p.peekChar('"') {
			p.pos++
		}
		return p.input[start:p.pos]
	}

	// Read until whitespace or special char, keeping bracketed ranges whole
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if ch == '[' {
			for p.pos < len(p.input) && !p.peekChar(']') {
				p.pos++
			}
			if p.peekChar(']') {
				p.pos++
			}
			continue
		}
		if ch == ' ' || ch == '(' || ch == ')' {
			break
		}
		p.pos++
	}

	return p.input[start:p.pos]
}

func (p *parser) skipWhitespace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek(str string) bool {
	if p.pos+len(str) > len(p.input) {
		return false
	}
	return p.input[p.pos:p.pos+len(str)] == str
}

func (p *parser) peekChar(ch byte) bool {
	if p.pos >= len(p.input) {
		return false
	}
	return p.input[p.pos] == ch
}

func (p *parser) consume(n int) {
	p.pos += n
}

// Filter implementations

// AllFilter matches all entries
type AllFilter struct{}

func (f *AllFilter) Match(entry logstore.Entry) bool {
	return true
}

// AndFilter combines two filters with AND logic
type AndFilter struct {
	Left  Filter
	Right Filter
}

func (f *AndFilter) Match(entry logstore.Entry) bool {
	return f.Left.Match(entry) && f.Right.Match(entry)
}

// OrFilter combines two filters with OR logic
type OrFilter struct {
	Left  Filter
	Right Filter
}

func (f *OrFilter) Match(entry logstore.Entry) bool {
	return f.Left.Match(entry) || f.Right.Match(entry)
}

// NotFilter negates a filter
type NotFilter struct {
	Filter Filter
}

func (f *NotFilter) Match(entry logstore.Entry) bool {
	return !f.Filter.Match(entry)
}

// FieldFilter matches a specific field value
type FieldFilter struct {
	Field string
	Value string
	Exact bool
}

func (f *FieldFilter) Match(entry logstore.Entry) bool {
	value := fieldValue(entry, f.Field)
	if f.Exact {
		return value == f.Value
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(f.Value))
}

// KeywordFilter searches across tag, message, and exception
type KeywordFilter struct {
	Keyword string
}

func (f *KeywordFilter) Match(entry logstore.Entry) bool {
	return entry.Matches(f.Keyword)
}

// WildcardFilter matches field values with * wildcards
type WildcardFilter struct {
	Field   string
	Pattern string
}

func (f *WildcardFilter) Match(entry logstore.Entry) bool {
	value := fieldValue(entry, f.Field)

	// Convert wildcard pattern to regex
	pattern := strings.ReplaceAll(regexp.QuoteMeta(f.Pattern), `\*`, ".*")
	pattern = "^" + pattern + "$"
	matched, _ := regexp.MatchString("(?i)"+pattern, value)
	return matched
}

// TimestampRangeFilter filters by timestamp range
type TimestampRangeFilter struct {
	Start time.Time
	End   time.Time
}

func (f *TimestampRangeFilter) Match(entry logstore.Entry) bool {
	ts := entry.Time()
	if !f.Start.IsZero() && ts.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && ts.After(f.End) {
		return false
	}
	return true
}
