package pagbank

import (
	"context"
	"strings"

	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/models"
)

// PagBank transaction statuses that settle a purchase.
const (
	StatusPaid      = 3
	StatusAvailable = 4
)

// TransactionLookup resolves a notification code to the provider's record.
type TransactionLookup interface {
	Lookup(ctx context.Context, notificationCode string) (*Transaction, error)
}

type Reconciler struct {
	lookup       TransactionLookup
	paidStatuses map[string]struct{}
	allowDirect  bool
}

// NewReconciler builds a reconciler. paidStatuses is the allow-list used for
// direct payloads, matched case-insensitively.
func NewReconciler(lookup TransactionLookup, paidStatuses []string, allowDirect bool) *Reconciler {
	allowed := make(map[string]struct{}, len(paidStatuses))
	for _, s := range paidStatuses {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			allowed[s] = struct{}{}
		}
	}
	return &Reconciler{
		lookup:       lookup,
		paidStatuses: allowed,
		allowDirect:  allowDirect,
	}
}

// Reconcile reduces a notification to payment evidence. It never fails: a
// notification that cannot be confirmed yields OutcomeUnconfirmed.
func (r *Reconciler) Reconcile(ctx context.Context, n Notification) models.PaymentEvidence {
	switch n := n.(type) {
	case ReferenceNotice:
		return r.reconcileReference(ctx, n)
	case DirectPayload:
		return r.reconcileDirect(n)
	default:
		return models.PaymentEvidence{Outcome: models.OutcomeUnconfirmed}
	}
}

func (r *Reconciler) reconcileReference(ctx context.Context, n ReferenceNotice) models.PaymentEvidence {
	unconfirmed := models.PaymentEvidence{Outcome: models.OutcomeUnconfirmed, Source: models.SourceLookup}

	if r.lookup == nil {
		logger.Error("Reference notification received but no PagBank lookup is configured", map[string]interface{}{
			"notification_code": n.Code,
		})
		return unconfirmed
	}

	tx, err := r.lookup.Lookup(ctx, n.Code)
	if err != nil {
		logger.Warn("Could not confirm PagBank notification", map[string]interface{}{
			"notification_code": n.Code,
			"notification_type": n.Type,
			"error":             err.Error(),
		})
		return unconfirmed
	}

	outcome := models.OutcomeNotPaid
	if tx.Status == StatusPaid || tx.Status == StatusAvailable {
		outcome = models.OutcomePaid
	}

	logger.Info("PagBank transaction looked up", map[string]interface{}{
		"notification_code": n.Code,
		"transaction_id":    tx.Code,
		"reference":         tx.Reference,
		"pagbank_status":    tx.Status,
		"outcome":           string(outcome),
	})

	return models.PaymentEvidence{
		Outcome:        outcome,
		Email:          tx.Email,
		TaxID:          tx.TaxID,
		TransactionRef: tx.Code,
		Source:         models.SourceLookup,
	}
}

func (r *Reconciler) reconcileDirect(p DirectPayload) models.PaymentEvidence {
	if !r.allowDirect {
		logger.Warn("Ignoring unauthenticated JSON payment payload; set ALLOW_DIRECT_PAYLOAD to accept it", map[string]interface{}{
			"transaction_id": p.TransactionID,
			"status":         p.Status,
		})
		return models.PaymentEvidence{Outcome: models.OutcomeUnconfirmed, Source: models.SourceDirect}
	}

	outcome := models.OutcomeNotPaid
	if _, ok := r.paidStatuses[strings.ToUpper(p.Status)]; ok {
		outcome = models.OutcomePaid
	}

	return models.PaymentEvidence{
		Outcome:        outcome,
		Email:          p.Email,
		TaxID:          p.TaxID,
		TransactionRef: p.TransactionID,
		Source:         models.SourceDirect,
	}
}
