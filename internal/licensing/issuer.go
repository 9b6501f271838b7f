package licensing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/internal/metrics"
	"nf-licencas.app/cloud/models"
	"nf-licencas.app/cloud/storage"
)

const (
	ReasonMissingEmail       = "MISSING_EMAIL"
	ReasonNotPaid            = "NOT_PAID"
	ReasonStoreUnavailable   = "STORE_UNAVAILABLE"
	ReasonCodeSpaceExhausted = "CODE_SPACE_EXHAUSTED"

	DefaultMaxCodeAttempts = 20
	DefaultValidity        = 30 * 24 * time.Hour
)

var ErrCodeSpaceExhausted = errors.New("no free license code found")

// Notifier hands a freshly issued license to the purchaser.
type Notifier interface {
	Deliver(ctx context.Context, license *models.License) error
}

type IssuerConfig struct {
	Validity        time.Duration
	Plan            string
	MaxCodeAttempts int

	// Optional, for tests.
	Generate CodeGenerator
	Now      func() time.Time
}

type Issuer struct {
	store       storage.Storage
	notifier    Notifier
	generate    CodeGenerator
	now         func() time.Time
	validity    time.Duration
	plan        string
	maxAttempts int
}

type IssueResult struct {
	Issued  bool
	License *models.License
	Reason  string
}

func NewIssuer(store storage.Storage, notifier Notifier, cfg IssuerConfig) *Issuer {
	issuer := &Issuer{
		store:       store,
		notifier:    notifier,
		generate:    cfg.Generate,
		now:         cfg.Now,
		validity:    cfg.Validity,
		plan:        cfg.Plan,
		maxAttempts: cfg.MaxCodeAttempts,
	}
	if issuer.generate == nil {
		issuer.generate = NewCode
	}
	if issuer.now == nil {
		issuer.now = time.Now
	}
	if issuer.validity <= 0 {
		issuer.validity = DefaultValidity
	}
	if issuer.plan == "" {
		issuer.plan = models.DefaultPlan
	}
	if issuer.maxAttempts <= 0 {
		issuer.maxAttempts = DefaultMaxCodeAttempts
	}
	return issuer
}

// Issue mints and persists a license for paid evidence. Business refusals come
// back as a Reason with a nil error; the error is set only for conditions an
// operator should be alerted about.
func (i *Issuer) Issue(ctx context.Context, evidence models.PaymentEvidence) (IssueResult, error) {
	if evidence.Email == "" {
		logger.Warn("Payment evidence has no purchaser email, not issuing", map[string]interface{}{
			"outcome":        string(evidence.Outcome),
			"transaction_id": evidence.TransactionRef,
		})
		return IssueResult{Reason: ReasonMissingEmail}, nil
	}

	if !evidence.Paid() {
		logger.Info("Payment not confirmed as paid, not issuing", map[string]interface{}{
			"outcome":        string(evidence.Outcome),
			"transaction_id": evidence.TransactionRef,
		})
		return IssueResult{Reason: ReasonNotPaid}, nil
	}

	code, err := i.freeCode(ctx)
	if err != nil {
		if errors.Is(err, ErrCodeSpaceExhausted) {
			return IssueResult{Reason: ReasonCodeSpaceExhausted}, err
		}
		return IssueResult{Reason: ReasonStoreUnavailable}, err
	}

	now := i.now().UTC()
	license := &models.License{
		Code:                 code,
		Email:                evidence.Email,
		TaxID:                evidence.TaxID,
		Status:               models.StatusActive,
		CreatedAt:            now,
		ExpiresAt:            now.Add(i.validity),
		Plan:                 i.plan,
		PaymentOrigin:        models.PaymentOriginPagBank,
		PaymentTransactionID: evidence.TransactionRef,
	}

	if err := i.store.SaveLicense(ctx, license); err != nil {
		return IssueResult{Reason: ReasonStoreUnavailable}, fmt.Errorf("failed to save license %s: %w", code, err)
	}

	metrics.LicensesIssued.Inc()
	logger.Info("License issued", map[string]interface{}{
		"code":           code,
		"email":          license.Email,
		"transaction_id": license.PaymentTransactionID,
		"expires_at":     license.ExpiresAt.Format(time.RFC3339),
	})

	if i.notifier != nil {
		if err := i.notifier.Deliver(ctx, license); err != nil {
			metrics.EmailFailures.Inc()
			logger.Error("Failed to deliver license to purchaser", map[string]interface{}{
				"code":  code,
				"email": license.Email,
				"error": err.Error(),
			})
		}
	}

	return IssueResult{Issued: true, License: license}, nil
}

// freeCode draws codes until the store reports one as unused. Probe then
// write: two concurrent issuers drawing the same code is accepted.
func (i *Issuer) freeCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= i.maxAttempts; attempt++ {
		code := i.generate()

		exists, err := i.store.LicenseExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to probe license code: %w", err)
		}
		if !exists {
			return code, nil
		}

		logger.Warn("License code collision, drawing again", map[string]interface{}{
			"code":    code,
			"attempt": attempt,
		})
	}
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, i.maxAttempts)
}
