package service

import (
	"context"
	"database/sql"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
)

type certificateLookup interface {
	FindByID(ctx context.Context, organizationID, id string) (*models.IssuedCertificate, error)
	FindByHash(ctx context.Context, hash string) (*models.IssuedCertificate, error)
	ListByBatch(ctx context.Context, organizationID, batchID string) ([]models.IssuedCertificate, error)
}

type downloadSigner interface {
	Generate(certificateID, relPath string) (string, time.Time, error)
	Parse(token string) (certificateID, relPath string, expiresAt time.Time, err error)
}

type artifactOpener interface {
	Open(filename string) (*os.File, error)
}

// SignedDownload is a short-lived download grant for one certificate PDF.
type SignedDownload struct {
	CertificateID string    `json:"certificate_id"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// CertificateService serves issued certificate reads: listings, signed PDF
// downloads and the public verification lookup.
type CertificateService struct {
	certificates certificateLookup
	signer       downloadSigner
	store        artifactOpener
	cache        *CacheService
	verifyTTL    time.Duration
	logger       *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(certificates certificateLookup, signer downloadSigner, store artifactOpener, cache *CacheService, verifyTTL time.Duration, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		certificates: certificates,
		signer:       signer,
		store:        store,
		cache:        cache,
		verifyTTL:    verifyTTL,
		logger:       logger,
	}
}

// ListByBatch returns all certificates of a batch within the tenant scope.
func (s *CertificateService) ListByBatch(ctx context.Context, batchID string, actor models.Actor) ([]models.IssuedCertificate, error) {
	certs, err := s.certificates.ListByBatch(ctx, actor.OrganizationID, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}

// Download issues a signed token for one rendered certificate PDF.
func (s *CertificateService) Download(ctx context.Context, certificateID string, actor models.Actor) (*SignedDownload, error) {
	cert, err := s.certificates.FindByID(ctx, actor.OrganizationID, certificateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.PDFPath == nil || *cert.PDFPath == "" {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "certificate pdf is not ready yet")
	}
	token, expiresAt, err := s.signer.Generate(cert.ID, *cert.PDFPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &SignedDownload{CertificateID: cert.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Fetch validates a signed token and opens the referenced PDF for streaming.
func (s *CertificateService) Fetch(token string) (*os.File, string, error) {
	certificateID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "certificate file missing")
	}
	return file, certificateID, nil
}

// Verify resolves a public verification hash to the certificate summary.
// Lookups are cached; unknown hashes are not cached so a certificate issued
// moments later verifies immediately.
func (s *CertificateService) Verify(ctx context.Context, hash string) (*models.CertificateVerification, error) {
	if hash == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verification hash required")
	}

	cacheKey := "verify:" + hash
	var cached models.CertificateVerification
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	cert, err := s.certificates.FindByHash(ctx, hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}

	verification := &models.CertificateVerification{
		CertificateNo: cert.CertificateNo,
		StudentName:   cert.StudentName,
		IssuedAt:      cert.IssuedAt,
		Valid:         true,
	}
	_ = s.cache.Set(ctx, cacheKey, verification, s.verifyTTL)
	return verification, nil
}
