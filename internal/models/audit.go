package models

import "time"

// Audit actions recorded by the certificate subsystem.
const (
	AuditActionCreate           = "create"
	AuditActionUpdate           = "update"
	AuditActionGenerateStudents = "generate_students"
	AuditActionApprove          = "approve"
	AuditActionIssue            = "issue"
)

// SystemActor is substituted when the acting user cannot be resolved.
const SystemActor = "system"

// CertificateAuditLog is an append-only trail entry. Rows are written inside
// the transaction of the mutation they describe and are never updated or
// deleted.
type CertificateAuditLog struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	EntityType     string    `db:"entity_type" json:"entity_type"`
	EntityID       string    `db:"entity_id" json:"entity_id"`
	Action         string    `db:"action" json:"action"`
	Metadata       []byte    `db:"metadata" json:"metadata,omitempty"`
	PerformedBy    string    `db:"performed_by" json:"performed_by"`
	PerformedAt    time.Time `db:"performed_at" json:"performed_at"`
}
