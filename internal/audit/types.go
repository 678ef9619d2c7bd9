// Package audit maintains the append-only activity trail for lockbox
// devices: lock actions, cooling changes, code issuance and completed
// deliveries. Entries are never modified or deleted once recorded.
package audit

import "time"

// Kind categorises an audit entry.
type Kind string

// Audit entry kinds.
const (
	KindSystem   Kind = "system"   // device lifecycle (claimed, removed)
	KindAction   Kind = "action"   // manual lock/unlock
	KindCooling  Kind = "cooling"  // cooling on/off
	KindCode     Kind = "code"     // access code issued
	KindDelivery Kind = "delivery" // code redeemed, delivery completed
	KindInfo     Kind = "info"     // informational events (firmware notices etc.)
)

// Valid reports whether k is a known audit kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSystem, KindAction, KindCooling, KindCode, KindDelivery, KindInfo:
		return true
	}
	return false
}

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	DeviceID  string    `json:"device_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
