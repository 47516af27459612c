package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// canonicalJSON encodes v with object keys sorted at every level so two
// equal values always produce byte-identical column contents.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func jsonList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	return canonicalJSON(v)
}

// nullJSON stores nil slices as NULL.
func nullJSON[T any](v []T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	s, err := canonicalJSON(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func decodeList(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, fmt.Errorf("decode json list: %w", err)
	}
	return out, nil
}

func decodeJSON[T any](s sql.NullString) ([]T, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, fmt.Errorf("decode json column: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
