package models

import "time"

// OrganizationCounter backs sequential certificate numbering. The composite
// key scopes one monotonic sequence per (organization, certificate type,
// school, year). last_value never decreases and increments only under a row
// lock inside the allocating transaction.
type OrganizationCounter struct {
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	CounterKey     string    `db:"counter_key" json:"counter_key"`
	LastValue      int64     `db:"last_value" json:"last_value"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
