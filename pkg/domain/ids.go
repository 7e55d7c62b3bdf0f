// Package domain holds the typed identifiers and role vocabulary shared
// across the lending system. Typed IDs make cross-entity assignment a
// compile error instead of a data corruption bug.
package domain

import (
	"database/sql/driver"

	"github.com/google/uuid"

	dErrors "libris/pkg/domain-errors"
)

type (
	// BookID identifies a catalog entry (one physical copy per title).
	BookID uuid.UUID
	// UserID identifies a principal.
	UserID uuid.UUID
	// LoanID identifies a ledger record.
	LoanID uuid.UUID
)

func NewBookID() BookID { return BookID(uuid.New()) }
func NewUserID() UserID { return UserID(uuid.New()) }
func NewLoanID() LoanID { return LoanID(uuid.New()) }

func (id BookID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string { return uuid.UUID(id).String() }
func (id LoanID) String() string { return uuid.UUID(id).String() }

func (id BookID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LoanID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id BookID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id LoanID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *BookID) UnmarshalText(b []byte) error {
	parsed, err := ParseBookID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *LoanID) UnmarshalText(b []byte) error {
	parsed, err := ParseLoanID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id BookID) Value() (driver.Value, error) { return id.String(), nil }
func (id UserID) Value() (driver.Value, error) { return id.String(), nil }
func (id LoanID) Value() (driver.Value, error) { return id.String(), nil }

func (id *BookID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id *UserID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }
func (id *LoanID) Scan(src any) error { return scanUUID((*uuid.UUID)(id), src) }

func scanUUID(dst *uuid.UUID, src any) error {
	return dst.Scan(src)
}

// ParseBookID validates input at trust boundaries: IDs must be valid,
// non-empty, non-nil UUIDs.
func ParseBookID(s string) (BookID, error) {
	u, err := parseUUID(s, "book id")
	return BookID(u), err
}

// ParseUserID validates input at trust boundaries.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseLoanID validates input at trust boundaries.
func ParseLoanID(s string) (LoanID, error) {
	u, err := parseUUID(s, "loan id")
	return LoanID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil uuid")
	}
	return u, nil
}
