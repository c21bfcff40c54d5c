package filestore

import (
	"context"
	"encoding/json"
)

// SaveObject encodes v as JSON and stores it under name, following
// SaveJSON's failure contract. Encoding failures are logged and
// reported as false.
func SaveObject[T any](ctx context.Context, s *Store, name string, v T) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("failed to encode object", "name", name, "error", err)
		return false
	}
	return s.SaveJSON(ctx, name, string(data))
}

// LoadObject loads and decodes the named file into a T, following
// LoadJSON's failure contract. Decoding failures are logged and
// reported as a zero value with false.
func LoadObject[T any](ctx context.Context, s *Store, name string) (T, bool) {
	var v T
	data, ok := s.LoadJSON(ctx, name)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		s.log.Error("failed to decode object", "name", name, "error", err)
		var zero T
		return zero, false
	}
	return v, true
}
