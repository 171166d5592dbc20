// Package models defines GORM database models for mixarr entities.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UUID is a wrapper around uuid.UUID for database storage as primary key.
type UUID uuid.UUID

// NewUUID generates a new random UUID.
func NewUUID() UUID {
	return UUID(uuid.New())
}

// ParseUUID parses a UUID string.
func ParseUUID(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return UUID(id), nil
}

// MustParseUUID parses a UUID string and panics on error.
func MustParseUUID(s string) UUID {
	id, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical string representation of the UUID.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// IsZero returns true if the UUID is zero/empty.
func (u UUID) IsZero() bool {
	return uuid.UUID(u) == uuid.Nil
}

// Value implements driver.Valuer for database storage.
func (u UUID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return uuid.UUID(u).String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (u *UUID) Scan(value any) error {
	if value == nil {
		*u = UUID{}
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			*u = UUID{}
			return nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("scanning UUID: %w", err)
		}
		*u = UUID(id)
	case []byte:
		if len(v) == 0 {
			*u = UUID{}
			return nil
		}
		id, err := uuid.Parse(string(v))
		if err != nil {
			return fmt.Errorf("scanning UUID: %w", err)
		}
		*u = UUID(id)
	default:
		return fmt.Errorf("unsupported type for UUID: %T", value)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u UUID) MarshalJSON() ([]byte, error) {
	if u.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UUID) UnmarshalJSON(data []byte) error {
	// Handle null
	if string(data) == "null" {
		*u = UUID{}
		return nil
	}
	// Remove quotes
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid UUID JSON: %s", string(data))
	}
	s := string(data[1 : len(data)-1])
	if s == "" {
		*u = UUID{}
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("parsing UUID JSON: %w", err)
	}
	*u = UUID(id)
	return nil
}

// GormDataType returns the GORM data type for UUID.
func (UUID) GormDataType() string {
	return "varchar(36)"
}

// BaseModel provides common fields for catalog models with UUID as primary key.
type BaseModel struct {
	ID        UUID      `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID if not already set.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = NewUUID()
	}
	return nil
}

// GetID returns the UUID identifier.
func (b *BaseModel) GetID() UUID {
	return b.ID
}

// StringList is a helper type for storing string arrays in the database.
type StringList []string

// Contains reports whether the list contains the given value.
func (l StringList) Contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// Time is an alias for time.Time used in models.
type Time = time.Time

// Now returns the current time.
func Now() Time {
	return time.Now()
}
