package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edukita/gradcert-api/internal/models"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
	"github.com/edukita/gradcert-api/pkg/jobs"
)

type templateResolver interface {
	FindActive(ctx context.Context, organizationID, schoolID, certificateType string) (*models.CertificateTemplate, error)
	FindByID(ctx context.Context, organizationID, id string) (*models.CertificateTemplate, error)
}

type certificateWriter interface {
	Insert(ctx context.Context, tx *sqlx.Tx, cert *models.IssuedCertificate) error
}

type numberAllocator interface {
	Generate(ctx context.Context, tx *sqlx.Tx, organizationID, schoolID, certificateType string, year int) (string, error)
	VerificationHash(studentID string) (string, error)
}

type passingSnapshotRepo interface {
	ListPassingForUpdate(ctx context.Context, tx *sqlx.Tx, batchID string) ([]models.GraduationStudent, error)
}

type renderEnqueuer interface {
	Enqueue(job jobs.RenderJob) error
}

type certificateRenderer interface {
	RenderCertificate(ctx context.Context, certificateID string) error
}

const entityCertificate = "issued_certificate"

// IssueRequest selects the template for one issuance run. Either an explicit
// template id or a certificate type to resolve the active design for.
type IssueRequest struct {
	TemplateID      string `json:"template_id" validate:"required_without=CertificateType"`
	CertificateType string `json:"certificate_type" validate:"required_without=TemplateID"`
}

// IssueResult summarises one committed issuance run.
type IssueResult struct {
	BatchID      string                     `json:"batch_id"`
	TemplateID   string                     `json:"template_id"`
	IssuedCount  int                        `json:"issued_count"`
	Certificates []models.IssuedCertificate `json:"certificates"`
}

// IssueService turns an approved batch into issued certificates. Numbering,
// record creation, audit and the status flip commit in one transaction; PDF
// rendering happens after commit and never rolls issuance back.
type IssueService struct {
	batches       batchRepo
	snapshots     passingSnapshotRepo
	templates     templateResolver
	certificates  certificateWriter
	numbers       numberAllocator
	audit         auditLogger
	tx            transactor
	cache         *CacheService
	metrics       *MetricsService
	renderer      certificateRenderer
	queue         renderEnqueuer
	renderAsync   bool
	verifyBaseURL string
	templateTTL   time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// IssueServiceDeps bundles the issuance collaborators.
type IssueServiceDeps struct {
	Batches       batchRepo
	Snapshots     passingSnapshotRepo
	Templates     templateResolver
	Certificates  certificateWriter
	Numbers       numberAllocator
	Audit         auditLogger
	Tx            transactor
	Cache         *CacheService
	Metrics       *MetricsService
	Renderer      certificateRenderer
	Queue         renderEnqueuer
	RenderAsync   bool
	VerifyBaseURL string
	TemplateTTL   time.Duration
	Validator     *validator.Validate
	Logger        *zap.Logger
}

// NewIssueService constructs IssueService.
func NewIssueService(deps IssueServiceDeps) *IssueService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &IssueService{
		batches:       deps.Batches,
		snapshots:     deps.Snapshots,
		templates:     deps.Templates,
		certificates:  deps.Certificates,
		numbers:       deps.Numbers,
		audit:         deps.Audit,
		tx:            deps.Tx,
		cache:         deps.Cache,
		metrics:       deps.Metrics,
		renderer:      deps.Renderer,
		queue:         deps.Queue,
		renderAsync:   deps.RenderAsync,
		verifyBaseURL: deps.VerifyBaseURL,
		templateTTL:   deps.TemplateTTL,
		validator:     deps.Validator,
		logger:        deps.Logger,
	}
}

// IssueCertificates issues one certificate per passing student of an approved
// batch and flips the batch to issued, all in a single transaction.
func (s *IssueService) IssueCertificates(ctx context.Context, batchID string, req IssueRequest, actor models.Actor) (*IssueResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}

	// Cheap precondition pass before taking locks; everything is re-checked
	// under the row lock inside the transaction.
	preflight, err := s.batches.FindByID(ctx, actor.OrganizationID, actor.SchoolID, batchID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if !preflight.Status.CanTransition(models.BatchStatusIssued) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "batch is not approved")
	}

	template, err := s.resolveTemplate(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	result := &IssueResult{BatchID: batchID, TemplateID: template.ID}
	start := time.Now()

	err = s.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.batches.FindByIDForUpdate(ctx, tx, actor.OrganizationID, actor.SchoolID, batchID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock batch")
		}
		if !batch.Status.CanTransition(models.BatchStatusIssued) {
			return appErrors.Clone(appErrors.ErrInvalidState, "batch is not approved")
		}

		passing, err := s.snapshots.ListPassingForUpdate(ctx, tx, batchID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load passing students")
		}
		if len(passing) == 0 {
			return appErrors.Clone(appErrors.ErrUnprocessable, "no eligible students to issue certificates for")
		}

		year := batch.GraduationDate.Year()
		for _, student := range passing {
			number, err := s.numbers.Generate(ctx, tx, actor.OrganizationID, actor.SchoolID, template.Type, year)
			if err != nil {
				return err
			}
			hash, err := s.numbers.VerificationHash(student.StudentID)
			if err != nil {
				return err
			}
			cert := &models.IssuedCertificate{
				OrganizationID:   actor.OrganizationID,
				SchoolID:         actor.SchoolID,
				TemplateID:       template.ID,
				BatchID:          batchID,
				StudentID:        student.StudentID,
				StudentName:      student.StudentName,
				CertificateNo:    number,
				VerificationHash: hash,
				QRPayload:        fmt.Sprintf("%s/%s", s.verifyBaseURL, hash),
				IssuedBy:         actor.UserID,
			}
			if err := s.certificates.Insert(ctx, tx, cert); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record certificate")
			}
			if err := s.audit.Log(ctx, tx, actor, entityCertificate, cert.ID, models.AuditActionIssue, map[string]string{
				"certificate_no": cert.CertificateNo,
				"student_id":     cert.StudentID,
			}); err != nil {
				return err
			}
			result.Certificates = append(result.Certificates, *cert)
		}

		batch.Status = models.BatchStatusIssued
		if err := s.batches.SetStatus(ctx, tx, batch); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark batch issued")
		}
		result.IssuedCount = len(result.Certificates)
		return s.audit.Log(ctx, tx, actor, entityBatch, batchID, models.AuditActionIssue, map[string]int{"count": result.IssuedCount})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveIssuance(time.Since(start))
	s.metrics.RecordBatchTransition(string(models.BatchStatusIssued))
	for range result.Certificates {
		s.metrics.RecordCertificateIssued(template.Type)
	}
	s.logger.Info("certificates issued",
		zap.String("batch_id", batchID),
		zap.Int("count", result.IssuedCount),
		zap.String("template_id", template.ID))

	s.dispatchRenders(ctx, result.Certificates)
	return result, nil
}

// dispatchRenders produces the PDF artifacts for committed certificates.
// Failures are logged and retried by the queue; issuance is already durable.
func (s *IssueService) dispatchRenders(ctx context.Context, certs []models.IssuedCertificate) {
	for _, cert := range certs {
		if s.renderAsync && s.queue != nil {
			if err := s.queue.Enqueue(jobs.RenderJob{CertificateID: cert.ID, BatchID: cert.BatchID}); err != nil {
				s.metrics.RecordRenderFailure()
				s.logger.Error("failed to enqueue certificate render",
					zap.String("certificate_id", cert.ID), zap.Error(err))
			}
			continue
		}
		if err := s.renderer.RenderCertificate(ctx, cert.ID); err != nil {
			s.metrics.RecordRenderFailure()
			s.logger.Error("certificate render failed",
				zap.String("certificate_id", cert.ID), zap.Error(err))
			// Issuance is committed; hand the artifact to the queue so the
			// pdf_path is eventually backfilled instead of staying null.
			if s.queue != nil {
				if qErr := s.queue.Enqueue(jobs.RenderJob{CertificateID: cert.ID, BatchID: cert.BatchID}); qErr != nil {
					s.logger.Error("failed to requeue certificate render",
						zap.String("certificate_id", cert.ID), zap.Error(qErr))
				}
			}
		}
	}
}

// resolveTemplate loads the requested template, or the active design for the
// requested type (cached) when no explicit id was given.
func (s *IssueService) resolveTemplate(ctx context.Context, actor models.Actor, req IssueRequest) (*models.CertificateTemplate, error) {
	if req.TemplateID != "" {
		template, err := s.templates.FindByID(ctx, actor.OrganizationID, req.TemplateID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrUnprocessable, "certificate template not available")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
		}
		return s.checkTemplate(template, actor)
	}

	cacheKey := fmt.Sprintf("template:%s:%s:%s", actor.OrganizationID, actor.SchoolID, req.CertificateType)
	var cached models.CertificateTemplate
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return s.checkTemplate(&cached, actor)
	}

	template, err := s.templates.FindActive(ctx, actor.OrganizationID, actor.SchoolID, req.CertificateType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnprocessable, "no active certificate template for this type")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve template")
	}
	_ = s.cache.Set(ctx, cacheKey, template, s.templateTTL)
	return s.checkTemplate(template, actor)
}

func (s *IssueService) checkTemplate(template *models.CertificateTemplate, actor models.Actor) (*models.CertificateTemplate, error) {
	if !template.IsActive {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "certificate template is not active")
	}
	if template.SchoolID != nil && *template.SchoolID != actor.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "certificate template belongs to another school")
	}
	return template, nil
}
