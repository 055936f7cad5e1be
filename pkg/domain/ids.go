// Package domain holds shared value types used across the vault: typed
// identifiers and enumerated attributes. Constructing values through the
// Parse* helpers enforces invariants at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "medvault/pkg/domain-errors"
)

// Typed identifiers. Distinct types prevent an ItemID from being passed
// where a GrantID is expected; the compiler enforces the distinction.
type (
	// ItemID identifies one shareable unit of the owner's health data.
	ItemID uuid.UUID

	// RequestID identifies an inbound data-access request.
	RequestID uuid.UUID

	// GrantID identifies an immutable record of approved access.
	GrantID uuid.UUID

	// RequesterID identifies the external entity asking for access.
	RequesterID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseItemID constructs an ItemID from external input.
func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s)
	return ItemID(u), err
}

// ParseRequestID constructs a RequestID from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s)
	return RequestID(u), err
}

// ParseGrantID constructs a GrantID from external input.
func ParseGrantID(s string) (GrantID, error) {
	u, err := parseUUID(s)
	return GrantID(u), err
}

// ParseRequesterID constructs a RequesterID from external input.
func ParseRequesterID(s string) (RequesterID, error) {
	u, err := parseUUID(s)
	return RequesterID(u), err
}

func (id ItemID) String() string      { return uuid.UUID(id).String() }
func (id RequestID) String() string   { return uuid.UUID(id).String() }
func (id GrantID) String() string     { return uuid.UUID(id).String() }
func (id RequesterID) String() string { return uuid.UUID(id).String() }

func (id ItemID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id GrantID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RequesterID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
