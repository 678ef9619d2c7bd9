// Package access implements the one-time access code ledger: issuance,
// redemption with a deferred re-lock, periodic expiry sweeps, and the
// active/completed partition served to callers.
package access

import (
	"errors"
	"time"
)

// Code is a one-time access grant for a device.
//
// A code is in exactly one of three lifecycle states:
//
//	active:  UsedAt unset, Expired false
//	used:    UsedAt set
//	expired: UsedAt unset, Expired true
//
// Transitions are one-directional: active to used, active to expired.
// A used code never expires; an expired code can never be redeemed.
type Code struct {
	ID        string     `json:"id"`
	DeviceID  string     `json:"device_id"`
	Code      string     `json:"code"`
	Note      string     `json:"note,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// Active reports whether the code can still be redeemed.
func (c *Code) Active() bool {
	return c.UsedAt == nil && !c.Expired
}

// DeepCopy creates an independent copy of the Code.
func (c *Code) DeepCopy() *Code {
	if c == nil {
		return nil
	}
	cpy := *c
	if c.UsedAt != nil {
		t := *c.UsedAt
		cpy.UsedAt = &t
	}
	return &cpy
}

// Domain errors for the access package.
var (
	// ErrCodeNotFound is returned when a code ID does not exist.
	ErrCodeNotFound = errors.New("access: code not found")

	// ErrInvalidTTL is returned when a code is issued with a non-positive
	// lifetime.
	ErrInvalidTTL = errors.New("access: ttl must be positive")
)
