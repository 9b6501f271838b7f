package models

import "time"

// Persisted status values. Anything else was set by hand on the document and
// is reported back to the client as-is.
const (
	StatusActive  = "ativo"
	StatusExpired = "expirado"
)

const (
	DefaultPlan          = "mensal"
	PaymentOriginPagBank = "pagbank"
)

type License struct {
	Code                 string    `json:"codigo"`
	Email                string    `json:"email"`
	TaxID                string    `json:"cpf,omitempty"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"compra_em"`
	ExpiresAt            time.Time `json:"expira_em"`
	Plan                 string    `json:"plano"`
	PaymentOrigin        string    `json:"origem_pagamento"`
	PaymentTransactionID string    `json:"id_transacao_pagbank"`
}

// StatusOrDefault reads a document without a status as active.
func StatusOrDefault(status string) string {
	if status == "" {
		return StatusActive
	}
	return status
}

func (l *License) IsActive() bool {
	return l.Status == StatusActive
}

// ExpiredAt reports whether the license validity has run out at t. A license
// whose expiry equals t is still valid.
func (l *License) ExpiredAt(t time.Time) bool {
	return l.ExpiresAt.Before(t)
}
