// Package apierror defines the JSON envelopes every 4xx/5xx response uses.
// Handlers never hand raw error values to clients: persistence errors, SQL
// state and stack traces stay in the logs, only the detail line goes out.
package apierror

// APIError carries a single human-readable detail line.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError reports per-field binding failures alongside the summary,
// keyed by struct field name with the failed validator tag as the value.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Fields: fields}
}
