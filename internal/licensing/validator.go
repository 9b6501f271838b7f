package licensing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nf-licencas.app/cloud/internal/logger"
	"nf-licencas.app/cloud/models"
	"nf-licencas.app/cloud/storage"
)

const (
	ReasonNotFound = "LICENCA_INEXISTENTE"
	// ReasonExpired is reported by the check that performs the transition.
	// Later checks report LICENCA_ plus the stored status.
	ReasonExpired = "LICENCA_EXPIRADA"

	// codePrefix is how the extension displays codes to users.
	codePrefix = "@#"
)

type ValidationResult struct {
	OK        bool
	Reason    string
	ExpiresAt *time.Time
}

type Validator struct {
	store storage.Storage
	now   func() time.Time
}

func NewValidator(store storage.Storage) *Validator {
	return &Validator{store: store, now: time.Now}
}

// NormalizeCode trims, uppercases and strips the display prefix.
func NormalizeCode(presented string) string {
	code := strings.ToUpper(strings.TrimSpace(presented))
	code = strings.TrimPrefix(code, codePrefix)
	return strings.TrimSpace(code)
}

// Validate checks a presented code. The error is set only when the store read
// itself fails.
func (v *Validator) Validate(ctx context.Context, presented string) (ValidationResult, error) {
	code := NormalizeCode(presented)

	license, err := v.store.GetLicense(ctx, code)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to read license %s: %w", code, err)
	}
	if license == nil {
		return ValidationResult{Reason: ReasonNotFound}, nil
	}

	if !license.IsActive() {
		return ValidationResult{Reason: "LICENCA_" + strings.ToUpper(license.Status)}, nil
	}

	expiresAt := license.ExpiresAt
	if license.ExpiredAt(v.now()) {
		if err := v.store.UpdateLicenseStatus(ctx, code, models.StatusExpired); err != nil {
			// Reported as expired anyway; the next check retries the write.
			logger.Warn("Failed to mark license as expired", map[string]interface{}{
				"code":  code,
				"error": err.Error(),
			})
		} else {
			logger.Info("License expired", map[string]interface{}{
				"code":       code,
				"expires_at": expiresAt.Format(time.RFC3339),
			})
		}
		return ValidationResult{Reason: ReasonExpired, ExpiresAt: &expiresAt}, nil
	}

	return ValidationResult{OK: true, ExpiresAt: &expiresAt}, nil
}
