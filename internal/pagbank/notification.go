package pagbank

import (
	"encoding/json"
	"errors"
	"mime"
	"net/url"
	"strings"

	"github.com/spf13/cast"
)

var ErrUnrecognizedPayload = errors.New("payload is neither a PagBank form notification nor a JSON payment")

// Notification is one of ReferenceNotice or DirectPayload.
type Notification interface {
	Kind() string
}

// ReferenceNotice is the form PagBank posts: an opaque code that must be
// looked up against the notification API.
type ReferenceNotice struct {
	Code string
	Type string
}

func (ReferenceNotice) Kind() string { return "reference" }

// DirectPayload carries the payment state in the request itself. Nothing
// authenticates it.
type DirectPayload struct {
	Status        string
	TransactionID string
	Email         string
	TaxID         string
}

func (DirectPayload) Kind() string { return "direct" }

// shapeParser returns ok=false when the body is not its shape.
type shapeParser struct {
	name  string
	parse func(contentType string, body []byte) (Notification, bool)
}

// Order matters: PagBank's own form notifications win over JSON.
var shapeParsers = []shapeParser{
	{name: "form", parse: parseForm},
	{name: "json", parse: parseJSON},
}

// ParseNotification runs the shape parsers in order and returns the first match.
func ParseNotification(contentType string, body []byte) (Notification, error) {
	for _, p := range shapeParsers {
		if n, ok := p.parse(contentType, body); ok {
			return n, nil
		}
	}
	return nil, ErrUnrecognizedPayload
}

func parseForm(contentType string, body []byte) (Notification, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return nil, false
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, false
	}

	code := firstValue(values, "notificationCode", "notification_code")
	if code == "" {
		return nil, false
	}

	return ReferenceNotice{
		Code: code,
		Type: firstValue(values, "notificationType", "notification_type"),
	}, true
}

func parseJSON(_ string, body []byte) (Notification, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload) == 0 {
		return nil, false
	}

	customer := cast.ToStringMap(payload["customer"])

	return DirectPayload{
		Status:        strings.TrimSpace(cast.ToString(payload["status"])),
		TransactionID: firstString(payload, "transaction_id", "id"),
		Email:         strings.TrimSpace(cast.ToString(customer["email"])),
		TaxID:         firstString(customer, "tax_id", "cpf"),
	}, true
}

func firstValue(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(cast.ToString(m[key])); v != "" {
			return v
		}
	}
	return ""
}
