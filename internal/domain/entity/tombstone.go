package entity

import "time"

// Tombstone marks a soft-deleted row. Invoices, customers and products are
// buried rather than removed; payments are removed outright.
type Tombstone struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the row has been buried
func (t Tombstone) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Bury stamps the deletion time
func (t *Tombstone) Bury(at time.Time) {
	t.DeletedAt = &at
}
