package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edukita/gradcert-api/internal/middleware"
	"github.com/edukita/gradcert-api/internal/service"
	appErrors "github.com/edukita/gradcert-api/pkg/errors"
	"github.com/edukita/gradcert-api/pkg/response"
)

// CertificateHandler exposes issued certificate endpoints, including the
// public verification lookup.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs handler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// List godoc
// @Summary List issued certificates of a batch
// @Tags Certificates
// @Produce json
// @Param batch_id query string true "Batch id"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	batchID := c.Query("batch_id")
	if batchID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "batch_id is required"))
		return
	}
	certs, err := h.certificates.ListByBatch(c.Request.Context(), batchID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Download godoc
// @Summary Get a signed download link for a certificate PDF
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate id"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	grant, err := h.certificates.Download(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// Fetch streams a certificate PDF for a valid signed token. No auth header:
// the token itself is the grant.
// @Summary Download a certificate PDF with a signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /certificates/download [get]
func (h *CertificateHandler) Fetch(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, certificateID, err := h.certificates.Fetch(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	c.Header("Content-Disposition", `attachment; filename="`+certificateID+`.pdf"`)
	c.Header("Content-Type", "application/pdf")
	c.File(file.Name())
}

// Verify godoc
// @Summary Verify a certificate by its public hash
// @Tags Certificates
// @Produce json
// @Param hash path string true "Verification hash"
// @Success 200 {object} response.Envelope
// @Router /verify/certificates/{hash} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	verification, err := h.certificates.Verify(c.Request.Context(), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verification, nil)
}
