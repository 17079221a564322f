package hunyuan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
)

// Sentinel errors.
var (
	// ErrInvalidRequest indicates a request failed local validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoJobID indicates a submit call succeeded without returning a job id.
	ErrNoJobID = errors.New("response contains no job id")

	// ErrNotQueryable indicates the job kind has no query action.
	ErrNotQueryable = errors.New("job kind has no query action")

	// ErrMissingCredentials indicates the client was configured without keys.
	ErrMissingCredentials = errors.New("secret_id and secret_key are required")
)

// APIError is a failed API call, either rejected by the service or unable to
// reach it.
type APIError struct {
	Action    string
	Code      string
	Message   string
	RequestID string

	// Err is the underlying SDK or transport error, if any.
	Err error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: ", e.Action)
	if e.Code != "" {
		fmt.Fprintf(&b, "[%s] ", e.Code)
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("request failed")
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request id %s)", e.RequestID)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// transientCodePrefixes lists service error codes worth retrying later.
var transientCodePrefixes = []string{
	"RequestLimitExceeded",
	"InternalError",
	"ResourceUnavailable",
	"ClientError.NetworkError",
	"ClientError.HttpStatusCodeError",
}

// IsTransient reports whether err is likely to succeed if retried: network
// failures, throttling and service-side internal errors. Cancellation and
// validation errors are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidRequest) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		for _, p := range transientCodePrefixes {
			if strings.HasPrefix(apiErr.Code, p) {
				return true
			}
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsAuthError reports whether err is a credential or signature rejection.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.HasPrefix(apiErr.Code, "AuthFailure")
}

// wrapCallError converts an SDK error into an *APIError.
func wrapCallError(action string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	var sdkErr *sdkerrors.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		return &APIError{
			Action:    action,
			Code:      sdkErr.GetCode(),
			Message:   sdkErr.GetMessage(),
			RequestID: sdkErr.GetRequestId(),
			Err:       err,
		}
	}
	return &APIError{Action: action, Err: err}
}
