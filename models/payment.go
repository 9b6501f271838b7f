package models

type PaymentOutcome string

const (
	OutcomePaid PaymentOutcome = "paid"
	// OutcomeNotPaid means the provider answered and the payment is not settled.
	OutcomeNotPaid PaymentOutcome = "not_paid"
	// OutcomeUnconfirmed means we could not get an authoritative answer.
	OutcomeUnconfirmed PaymentOutcome = "unconfirmed"
)

const (
	SourceDirect = "direct"
	SourceLookup = "lookup"
)

// PaymentEvidence is what the reconciler hands to the issuer.
type PaymentEvidence struct {
	Outcome        PaymentOutcome
	Email          string
	TaxID          string
	TransactionRef string
	Source         string
}

func (e PaymentEvidence) Paid() bool {
	return e.Outcome == OutcomePaid
}
