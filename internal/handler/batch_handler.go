package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edukita/gradcert-api/internal/middleware"
	"github.com/edukita/gradcert-api/internal/models"
	"github.com/edukita/gradcert-api/internal/service"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
	"github.com/edukita/gradcert-api/pkg/export"
	"github.com/edukita/gradcert-api/pkg/response"
)

// BatchHandler exposes graduation batch endpoints.
type BatchHandler struct {
	batches *service.BatchService
	issues  *service.IssueService
	audit   *service.AuditService
	csv     *export.CSVExporter
}

// NewBatchHandler constructs handler.
func NewBatchHandler(batches *service.BatchService, issues *service.IssueService, audit *service.AuditService, csv *export.CSVExporter) *BatchHandler {
	return &BatchHandler{batches: batches, issues: issues, audit: audit, csv: csv}
}

// Create godoc
// @Summary Create a graduation batch
// @Tags GraduationBatches
// @Accept json
// @Produce json
// @Param payload body service.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /graduation-batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.batches.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Update godoc
// @Summary Edit a draft graduation batch
// @Tags GraduationBatches
// @Accept json
// @Produce json
// @Param id path string true "Batch id"
// @Param payload body service.UpdateBatchRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id} [patch]
func (h *BatchHandler) Update(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	batch, err := h.batches.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Get godoc
// @Summary Get a graduation batch
// @Tags GraduationBatches
// @Produce json
// @Param id path string true "Batch id"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	batch, err := h.batches.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// List godoc
// @Summary List graduation batches
// @Tags GraduationBatches
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter := models.BatchFilter{
		OrganizationID: actor.OrganizationID,
		SchoolID:       actor.SchoolID,
		Status:         c.Query("status"),
		Page:           page,
		Limit:          limit,
	}
	batches, pagination, err := h.batches.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination)
}

// GenerateStudents godoc
// @Summary Evaluate eligibility and snapshot batch students
// @Tags GraduationBatches
// @Produce json
// @Param id path string true "Batch id"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id}/generate-students [post]
func (h *BatchHandler) GenerateStudents(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.batches.GenerateStudents(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Students godoc
// @Summary List the eligibility snapshot of a batch
// @Tags GraduationBatches
// @Produce json
// @Param id path string true "Batch id"
// @Param format query string false "Set to csv for an export"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id}/students [get]
func (h *BatchHandler) Students(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if c.Query("format") == "csv" {
		dataset, err := h.batches.ExportStudents(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		payload, err := h.csv.Render(*dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="graduation-students.csv"`)
		c.Data(http.StatusOK, "text/csv", payload)
		return
	}
	students, err := h.batches.ListStudents(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// Approve godoc
// @Summary Approve a draft graduation batch
// @Tags GraduationBatches
// @Produce json
// @Param id path string true "Batch id"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id}/approve [post]
func (h *BatchHandler) Approve(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	batch, err := h.batches.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// IssueCertificates godoc
// @Summary Issue certificates for an approved batch
// @Tags GraduationBatches
// @Accept json
// @Produce json
// @Param id path string true "Batch id"
// @Param payload body service.IssueRequest true "Template selection"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id}/issue-certificates [post]
func (h *BatchHandler) IssueCertificates(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.issues.IssueCertificates(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Audit godoc
// @Summary List the audit trail of a batch
// @Tags GraduationBatches
// @Produce json
// @Param id path string true "Batch id"
// @Success 200 {object} response.Envelope
// @Router /graduation-batches/{id}/audit [get]
func (h *BatchHandler) Audit(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if _, err := h.batches.Get(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.audit.Trail(c.Request.Context(), actor.OrganizationID, "graduation_batch", c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
