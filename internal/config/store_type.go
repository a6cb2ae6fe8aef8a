package config

import (
	"fmt"
	"strings"
)

// StoreType selects the reporting API storage backend.
type StoreType string

const (
	// StoreTypeMemory keeps reports in process memory.
	StoreTypeMemory StoreType = "memory"
	// StoreTypePostgres stores reports in PostgreSQL.
	StoreTypePostgres StoreType = "postgres"
)

// String returns the string representation of the store type.
func (s StoreType) String() string {
	return string(s)
}

// Validate checks that the store type is known.
func (s StoreType) Validate() error {
	switch s {
	case StoreTypeMemory, StoreTypePostgres:
		return nil
	default:
		return fmt.Errorf("invalid store type: %q (must be %q or %q)", string(s), StoreTypeMemory, StoreTypePostgres)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler. Values are matched
// case-insensitively and an empty value selects the memory store.
func (s *StoreType) UnmarshalText(text []byte) error {
	v := StoreType(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		v = StoreTypeMemory
	}
	if err := v.Validate(); err != nil {
		return err
	}
	*s = v
	return nil
}
