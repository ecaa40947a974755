package postgres

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
)

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// nullStr maps "" to NULL so partial indexes on text columns stay usable.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// encodeStrings serializes a string slice as JSON text, nil for empty.
func encodeStrings(ss []string) *string {
	if len(ss) == 0 {
		return nil
	}
	b, err := json.Marshal(ss)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// decodeStrings parses JSON text into a string slice; malformed or empty
// input yields nil rather than an error (array columns are best effort).
func decodeStrings(p *string) []string {
	if p == nil || *p == "" {
		return nil
	}
	var ss []string
	if err := json.Unmarshal([]byte(*p), &ss); err != nil {
		return nil
	}
	return ss
}
