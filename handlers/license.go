package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"nf-licencas.app/cloud/internal/licensing"
	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/internal/metrics"
	"nf-licencas.app/cloud/models"
)

var validate = validator.New()

type ValidateRequest struct {
	License string `json:"licenca" validate:"required"`
}

type ValidateResponse struct {
	OK        bool       `json:"ok"`
	Reason    string     `json:"motivo,omitempty"`
	ExpiresAt *time.Time `json:"expira_em,omitempty"`
	// Reserved for the shared MeuDanfe credential; always null here.
	MeuDanfeAPIKey *string `json:"api_key_meudanfe"`
}

func (s *Server) ValidateLicense(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validate.Struct(req); err != nil {
		writeErrorResponse(w, r, http.StatusBadRequest, "licenca is required")
		return
	}

	result, err := s.validator.Validate(r.Context(), req.License)
	if err != nil {
		logger.Error("Failed to validate license", map[string]interface{}{
			"error": err.Error(),
		})
		captureError(r, err)
		metrics.LicenseValidations.WithLabelValues("error").Inc()
		writeErrorResponse(w, r, http.StatusServiceUnavailable, "license store unavailable")
		return
	}

	metrics.LicenseValidations.WithLabelValues(validationLabel(result)).Inc()

	writeJSON(w, r, http.StatusOK, ValidateResponse{
		OK:        result.OK,
		Reason:    result.Reason,
		ExpiresAt: result.ExpiresAt,
	})
}

var reasonStoredExpired = "LICENCA_" + strings.ToUpper(models.StatusExpired)

// validationLabel keeps the metric label set bounded; statuses edited by hand
// on the document all count as inactive.
func validationLabel(result licensing.ValidationResult) string {
	if result.OK {
		return "ok"
	}
	switch result.Reason {
	case licensing.ReasonNotFound, licensing.ReasonExpired, reasonStoredExpired:
		return strings.ToLower(result.Reason)
	default:
		return "inactive"
	}
}
