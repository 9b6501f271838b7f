package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"nf-licencas.app/cloud/internal/licensing"
	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/internal/metrics"
	"nf-licencas.app/cloud/internal/pagbank"
	"nf-licencas.app/cloud/models"
)

const (
	maxWebhookBodyBytes = int64(65536)

	ReasonUnconfirmed = "UNCONFIRMED"
)

type WebhookResponse struct {
	OK          bool   `json:"ok"`
	LicenseCode string `json:"licenca_gerada,omitempty"`
	Ignored     bool   `json:"ignored,omitempty"`
	Reason      string `json:"motivo,omitempty"`
}

// PagBankWebhook answers 200 for every outcome except an unparseable body.
// PagBank retries aggressively on anything else, so failures surface in logs
// and Sentry instead of the status code.
func (s *Server) PagBankWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deliveryID := uuid.NewString()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("Failed to read webhook payload", map[string]interface{}{
			"delivery_id": deliveryID,
			"error":       err.Error(),
		})
		metrics.WebhookNotifications.WithLabelValues("unreadable").Inc()
		message := "could not read request body"
		if isBodyTooLarge(err) {
			message = "request body too large"
		}
		writeErrorResponse(w, r, http.StatusBadRequest, message)
		return
	}

	notification, err := pagbank.ParseNotification(r.Header.Get("Content-Type"), payload)
	if err != nil {
		logger.Warn("Unrecognized webhook payload", map[string]interface{}{
			"delivery_id":  deliveryID,
			"content_type": r.Header.Get("Content-Type"),
			"payload_size": len(payload),
		})
		metrics.WebhookNotifications.WithLabelValues("unrecognized").Inc()
		writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("PagBank notification received", map[string]interface{}{
		"delivery_id": deliveryID,
		"kind":        notification.Kind(),
	})

	evidence := s.reconciler.Reconcile(ctx, notification)
	if evidence.Outcome == models.OutcomeUnconfirmed {
		logger.Info("Notification ignored", map[string]interface{}{
			"delivery_id":    deliveryID,
			"reason":         ReasonUnconfirmed,
			"transaction_id": evidence.TransactionRef,
		})
		metrics.WebhookNotifications.WithLabelValues(strings.ToLower(ReasonUnconfirmed)).Inc()
		writeJSON(w, r, http.StatusOK, WebhookResponse{OK: true, Ignored: true, Reason: ReasonUnconfirmed})
		return
	}

	// The issuer owns the refusal order: a missing email is reported before
	// an unpaid status.
	result, err := s.issuer.Issue(ctx, evidence)
	if err != nil {
		logger.Error("Failed to issue license", map[string]interface{}{
			"delivery_id":    deliveryID,
			"reason":         result.Reason,
			"transaction_id": evidence.TransactionRef,
			"email":          evidence.Email,
			"error":          err.Error(),
		})
		captureError(r, err)
		metrics.WebhookNotifications.WithLabelValues(strings.ToLower(result.Reason)).Inc()
		writeJSON(w, r, http.StatusOK, WebhookResponse{OK: false, Reason: result.Reason})
		return
	}

	if !result.Issued {
		metrics.WebhookNotifications.WithLabelValues(strings.ToLower(result.Reason)).Inc()
		writeJSON(w, r, http.StatusOK, WebhookResponse{
			OK:      true,
			Ignored: result.Reason == licensing.ReasonNotPaid,
			Reason:  result.Reason,
		})
		return
	}

	logger.Info("Webhook processed successfully", map[string]interface{}{
		"delivery_id":    deliveryID,
		"code":           result.License.Code,
		"transaction_id": evidence.TransactionRef,
	})
	metrics.WebhookNotifications.WithLabelValues("issued").Inc()
	writeJSON(w, r, http.StatusOK, WebhookResponse{OK: true, LicenseCode: result.License.Code})
}

// isBodyTooLarge reports whether err came from MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
