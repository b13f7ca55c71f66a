package responses

// RequestIDHeader carries the per-request correlation id. The request id
// middleware sets it on the response before any handler runs, so error
// bodies can echo it back.
const RequestIDHeader = "X-Request-Id"

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the machine readable part of a failed response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorEnvelope wraps every 4xx/5xx body.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
