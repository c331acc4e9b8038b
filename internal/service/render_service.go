package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
	"github.com/edukita/gradcert-api/pkg/render"
)

type certificateReader interface {
	FindByIDUnscoped(ctx context.Context, id string) (*models.IssuedCertificate, error)
	UpdatePDFPath(ctx context.Context, certificateID, pdfPath string) error
}

type batchReader interface {
	FindByID(ctx context.Context, organizationID, schoolID, id string) (*models.GraduationBatch, error)
}

type templateFinder interface {
	FindByID(ctx context.Context, organizationID, id string) (*models.CertificateTemplate, error)
}

type snapshotReader interface {
	ListByBatch(ctx context.Context, batchID string) ([]models.GraduationStudent, error)
}

type artifactStore interface {
	Save(filename string, data []byte) (string, error)
	ReadFile(filename string) ([]byte, error)
}

type pdfRenderer interface {
	Render(req render.Request) ([]byte, error)
}

// RenderService produces certificate PDF artifacts for committed issuance
// records and backfills their storage path. It runs after the issuance
// transaction; a failed render leaves the record without a pdf_path and is
// retried by the queue.
type RenderService struct {
	certificates certificateReader
	batches      batchReader
	templates    templateFinder
	snapshots    snapshotReader
	store        artifactStore
	renderer     pdfRenderer
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewRenderService constructs RenderService.
func NewRenderService(certificates certificateReader, batches batchReader, templates templateFinder, snapshots snapshotReader, store artifactStore, renderer pdfRenderer, metrics *MetricsService, logger *zap.Logger) *RenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderService{
		certificates: certificates,
		batches:      batches,
		templates:    templates,
		snapshots:    snapshots,
		store:        store,
		renderer:     renderer,
		metrics:      metrics,
		logger:       logger,
	}
}

// RenderCertificate loads everything needed for one certificate, renders the
// PDF and stores it. Used inline after issuance and as the queue handler.
func (s *RenderService) RenderCertificate(ctx context.Context, certificateID string) error {
	start := time.Now()

	cert, err := s.certificates.FindByIDUnscoped(ctx, certificateID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	batch, err := s.batches.FindByID(ctx, cert.OrganizationID, cert.SchoolID, cert.BatchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	template, err := s.templates.FindByID(ctx, cert.OrganizationID, cert.TemplateID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}

	var snapshot *models.GraduationStudent
	students, err := s.snapshots.ListByBatch(ctx, cert.BatchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	for i := range students {
		if students[i].StudentID == cert.StudentID {
			snapshot = &students[i]
			break
		}
	}

	req, err := s.buildRequest(cert, batch, template, snapshot)
	if err != nil {
		return err
	}

	pdfBytes, err := s.renderer.Render(*req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	path := fmt.Sprintf("%s/%s.pdf", cert.BatchID, cert.ID)
	if _, err := s.store.Save(path, pdfBytes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}
	if err := s.certificates.UpdatePDFPath(ctx, cert.ID, path); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record certificate path")
	}

	s.metrics.ObserveRender(time.Since(start))
	s.logger.Debug("certificate rendered",
		zap.String("certificate_id", cert.ID),
		zap.String("path", path),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (s *RenderService) buildRequest(cert *models.IssuedCertificate, batch *models.GraduationBatch, template *models.CertificateTemplate, snapshot *models.GraduationStudent) (*render.Request, error) {
	values := fieldValues(cert, batch, snapshot)

	req := &render.Request{
		Orientation: template.Orientation,
		PageSize:    template.PageSize,
	}

	if template.BackgroundPath != nil && *template.BackgroundPath != "" {
		background, err := s.store.ReadFile(*template.BackgroundPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read template background")
		}
		req.Background = background
		req.BackgroundType = imageType(*template.BackgroundPath)
	}

	if template.HasLayout() {
		for _, lf := range template.Layout.Fields {
			req.Fields = append(req.Fields, render.Field{
				Name:       lf.Name,
				Value:      values[lf.Name],
				X:          lf.X,
				Y:          lf.Y,
				FontFamily: lf.FontFamily,
				FontStyle:  lf.FontStyle,
				FontSize:   lf.FontSize,
				Align:      lf.Align,
			})
		}
	} else if template.BodyHTML != nil {
		req.HTMLBody = substitute(*template.BodyHTML, values)
	}

	if cert.QRPayload != "" {
		qrImage, err := render.EncodeQR(cert.QRPayload, 256)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode verification qr")
		}
		req.QRImage = qrImage
		if template.Layout != nil && template.Layout.QR != nil {
			req.QRX = template.Layout.QR.X
			req.QRY = template.Layout.QR.Y
			req.QRSizeMM = template.Layout.QR.SizeMM
		}
	}

	return req, nil
}

// fieldValues resolves the placeholder map. Absent optional values stay empty
// and are skipped by the renderer.
func fieldValues(cert *models.IssuedCertificate, batch *models.GraduationBatch, snapshot *models.GraduationStudent) map[string]string {
	values := map[string]string{
		"student_name":     cert.StudentName,
		"certificate_no":   cert.CertificateNo,
		"graduation_date":  batch.GraduationDate.Format("2 January 2006"),
		"academic_year":    batch.AcademicYearID,
		"class":            batch.ClassID,
		"verification_url": cert.QRPayload,
		"issued_date":      cert.IssuedAt.Format("2 January 2006"),
	}
	if snapshot != nil {
		if snapshot.Eligibility.Percentage != nil {
			values["percentage"] = strconv.FormatFloat(*snapshot.Eligibility.Percentage, 'f', 2, 64) + "%"
		}
		if snapshot.Position != nil {
			values["rank"] = Ordinal(*snapshot.Position)
		}
	}
	return values
}

func substitute(body string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(body)
}

func imageType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "JPG"
	case ".gif":
		return "GIF"
	default:
		return "PNG"
	}
}

// Ordinal formats a rank with its English suffix (1st, 2nd, 3rd, 11th...).
func Ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 == 11, n%100 == 12, n%100 == 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
