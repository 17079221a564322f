package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTP error codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeBadRequest         = "BAD_REQUEST"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// HTTPErrorBody is the inner object of an error response.
type HTTPErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON error envelope: {"error": {...}}.
type HTTPErrorResponse struct {
	Error HTTPErrorBody `json:"error"`
}

// HTTPError is an error that knows its HTTP status and code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *HTTPError) Error() string { return e.Message }

// NotFound builds a 404 error.
func NotFound(message string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// BadRequest builds a 400 error.
func BadRequest(message string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message}
}

// ServiceUnavailable builds a 503 error.
func ServiceUnavailable(message string, details map[string]any) *HTTPError {
	return &HTTPError{Status: http.StatusServiceUnavailable, Code: CodeServiceUnavailable, Message: message, Details: details}
}

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

// RespondWithError writes err as a JSON error envelope. Errors that are not
// HTTPErrors become 500 INTERNAL_ERROR.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var he *HTTPError
	if !errors.As(err, &he) {
		he = &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
		if err != nil {
			he.Message = err.Error()
		}
	}
	body := HTTPErrorResponse{Error: HTTPErrorBody{
		Code:    he.Code,
		Message: he.Message,
		Details: he.Details,
	}}
	if r != nil {
		body.Error.RequestID = r.Header.Get(RequestIDHeader)
	}
	WriteJSON(w, he.Status, body)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NotFoundHandler responds 404 for unknown routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, NotFound("route not found: "+r.URL.Path))
}

// MethodNotAllowedHandler responds 405.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, &HTTPError{
		Status:  http.StatusMethodNotAllowed,
		Code:    CodeMethodNotAllowed,
		Message: "method " + r.Method + " not allowed on " + r.URL.Path,
	})
}
