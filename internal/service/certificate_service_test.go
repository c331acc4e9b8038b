package service

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type mockCertificateLookup struct {
	byID   map[string]models.IssuedCertificate
	byHash map[string]models.IssuedCertificate
	lookups int
}

func (m *mockCertificateLookup) FindByID(ctx context.Context, organizationID, id string) (*models.IssuedCertificate, error) {
	if c, ok := m.byID[id]; ok && c.OrganizationID == organizationID {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateLookup) FindByHash(ctx context.Context, hash string) (*models.IssuedCertificate, error) {
	m.lookups++
	if c, ok := m.byHash[hash]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateLookup) ListByBatch(ctx context.Context, organizationID, batchID string) ([]models.IssuedCertificate, error) {
	var out []models.IssuedCertificate
	for _, c := range m.byID {
		if c.BatchID == batchID {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockSigner struct{}

func (m *mockSigner) Generate(certificateID, relPath string) (string, time.Time, error) {
	return "token-" + certificateID, time.Now().Add(time.Hour), nil
}

func (m *mockSigner) Parse(token string) (string, string, time.Time, error) {
	return "cert-1", "batch-1/cert-1.pdf", time.Now().Add(time.Hour), nil
}

type mockOpener struct{}

func (m *mockOpener) Open(filename string) (*os.File, error) {
	return os.Open(os.DevNull)
}

func TestVerifyKnownHash(t *testing.T) {
	lookup := &mockCertificateLookup{byHash: map[string]models.IssuedCertificate{
		"hash-1": {CertificateNo: "PFX-DIPLOMA-2026-0001", StudentName: "Alice", IssuedAt: time.Now()},
	}}
	svc := NewCertificateService(lookup, &mockSigner{}, &mockOpener{}, nil, time.Hour, nil)

	verification, err := svc.Verify(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	assert.Equal(t, "PFX-DIPLOMA-2026-0001", verification.CertificateNo)
	assert.Equal(t, "Alice", verification.StudentName)
}

func TestVerifyUnknownHash(t *testing.T) {
	svc := NewCertificateService(&mockCertificateLookup{}, &mockSigner{}, &mockOpener{}, nil, time.Hour, nil)
	_, err := svc.Verify(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDownloadRequiresRenderedPDF(t *testing.T) {
	lookup := &mockCertificateLookup{byID: map[string]models.IssuedCertificate{
		"cert-1": {ID: "cert-1", OrganizationID: "org-1"},
	}}
	svc := NewCertificateService(lookup, &mockSigner{}, &mockOpener{}, nil, time.Hour, nil)

	_, err := svc.Download(context.Background(), "cert-1", testActor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnprocessable.Code, appErrors.FromError(err).Code)
}

func TestDownloadSignsRenderedPDF(t *testing.T) {
	path := "batch-1/cert-1.pdf"
	lookup := &mockCertificateLookup{byID: map[string]models.IssuedCertificate{
		"cert-1": {ID: "cert-1", OrganizationID: "org-1", PDFPath: &path},
	}}
	svc := NewCertificateService(lookup, &mockSigner{}, &mockOpener{}, nil, time.Hour, nil)

	grant, err := svc.Download(context.Background(), "cert-1", testActor)
	require.NoError(t, err)
	assert.Equal(t, "token-cert-1", grant.Token)
	assert.Equal(t, "cert-1", grant.CertificateID)
}
