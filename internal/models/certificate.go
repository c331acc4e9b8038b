package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// LayoutField positions one placeholder on the certificate page. X and Y are
// percentages of the page dimensions.
type LayoutField struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	FontFamily string  `json:"font_family,omitempty"`
	FontStyle  string  `json:"font_style,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
	Align      string  `json:"align,omitempty"`
}

// QRPlacement positions the verification QR code.
type QRPlacement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	SizeMM float64 `json:"size_mm,omitempty"`
}

// TemplateLayout is the coordinate-based layout configuration. When present it
// takes precedence over the legacy HTML body.
type TemplateLayout struct {
	Fields []LayoutField `json:"fields"`
	QR     *QRPlacement  `json:"qr,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (l TemplateLayout) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *TemplateLayout) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = TemplateLayout{}
		return nil
	default:
		return fmt.Errorf("unsupported layout scan type %T", src)
	}
}

// CertificateTemplate is a read-only view of a certificate design. Templates
// are managed elsewhere; this service only resolves active ones for issuance.
type CertificateTemplate struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	SchoolID       *string         `db:"school_id" json:"school_id,omitempty"`
	Name           string          `db:"name" json:"name"`
	Type           string          `db:"type" json:"type"`
	BodyHTML       *string         `db:"body_html" json:"body_html,omitempty"`
	BackgroundPath *string         `db:"background_path" json:"background_path,omitempty"`
	Layout         *TemplateLayout `db:"layout_config" json:"layout_config,omitempty"`
	PageSize       string          `db:"page_size" json:"page_size"`
	Orientation    string          `db:"orientation" json:"orientation"`
	IsActive       bool            `db:"is_active" json:"is_active"`
}

// HasLayout reports whether the coordinate layout mode applies.
func (t *CertificateTemplate) HasLayout() bool {
	return t.Layout != nil && len(t.Layout.Fields) > 0
}

// IssuedCertificate is the persisted record for one passing student. It is
// immutable after creation except for the pdf_path backfill once rendering
// completes.
type IssuedCertificate struct {
	ID               string    `db:"id" json:"id"`
	OrganizationID   string    `db:"organization_id" json:"organization_id"`
	SchoolID         string    `db:"school_id" json:"school_id"`
	TemplateID       string    `db:"template_id" json:"template_id"`
	BatchID          string    `db:"batch_id" json:"batch_id"`
	StudentID        string    `db:"student_id" json:"student_id"`
	StudentName      string    `db:"student_name" json:"student_name"`
	CertificateNo    string    `db:"certificate_no" json:"certificate_no"`
	VerificationHash string    `db:"verification_hash" json:"verification_hash"`
	QRPayload        string    `db:"qr_payload" json:"qr_payload"`
	PDFPath          *string   `db:"pdf_path" json:"pdf_path,omitempty"`
	IssuedBy         string    `db:"issued_by" json:"issued_by"`
	IssuedAt         time.Time `db:"issued_at" json:"issued_at"`
}

// CertificateVerification is the public projection returned by the
// unauthenticated verification endpoint. It intentionally excludes internal
// identifiers.
type CertificateVerification struct {
	CertificateNo string    `json:"certificate_no"`
	StudentName   string    `json:"student_name"`
	IssuedAt      time.Time `json:"issued_at"`
	Valid         bool      `json:"valid"`
}
