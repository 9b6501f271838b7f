package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LicensesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "licenses_issued_total",
		Help: "Licenses persisted after a confirmed payment.",
	})

	WebhookNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_notifications_total",
		Help: "Payment notifications received, by outcome.",
	}, []string{"outcome"})

	LicenseValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validations_total",
		Help: "License validation requests, by result.",
	}, []string{"result"})

	EmailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "license_email_failures_total",
		Help: "License emails that could not be delivered.",
	})
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
