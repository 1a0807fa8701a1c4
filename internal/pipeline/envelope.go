// Package pipeline orchestrates telemetry ingestion: envelope validation,
// device resolution, normalization, anomaly detection, risk scoring and
// persistence, with per-service failure isolation.
package pipeline

import "encoding/json"

// Envelope is the push payload delivered by the cloud IoT platform for one
// notification. Field names are fixed by the platform and must not be
// renamed.
type Envelope struct {
	Resource   string      `json:"resource"`
	Event      string      `json:"event"`
	EventTime  string      `json:"event_time"`
	NotifyData *NotifyData `json:"notify_data"`
}

// NotifyData carries the device header and reported service data.
type NotifyData struct {
	Header Header `json:"header"`
	Body   *Body  `json:"body"`
}

// Header identifies the reporting device.
type Header struct {
	DeviceID  string `json:"device_id"`
	ProductID string `json:"product_id"`
}

// Body wraps the ordered list of service reports.
type Body struct {
	Services []ServiceReport `json:"services"`
}

// ServiceReport is one named group of properties reported by a device for
// one logical sub-system. Properties is an open, loosely-typed bag: keys
// are sensor-defined and not exhaustively enumerable ahead of time.
type ServiceReport struct {
	ServiceID  string         `json:"service_id"`
	Properties map[string]any `json:"properties"`
	EventTime  string         `json:"event_time,omitempty"`
}

// ParseEnvelope decodes an inbound request body.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ValidationError rejects a malformed envelope before any processing runs.
// Code is machine readable so the platform operator can tell a missing
// notify_data from a missing services list.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Envelope validation failures.
var (
	ErrMissingNotifyData = &ValidationError{Code: "missing_notify_data", Message: "envelope is missing notify_data"}
	ErrMissingServices   = &ValidationError{Code: "missing_services", Message: "envelope is missing notify_data.body.services"}
)

// Validate checks the envelope shape. It returns a *ValidationError so the
// webhook layer can answer with a structured rejection.
func (e *Envelope) Validate() *ValidationError {
	if e == nil || e.NotifyData == nil {
		return ErrMissingNotifyData
	}
	if e.NotifyData.Body == nil || len(e.NotifyData.Body.Services) == 0 {
		return ErrMissingServices
	}
	return nil
}
