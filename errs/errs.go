// Package errs defines the structured error vocabulary used across wsrouter.
//
// Every error raised during dispatch is represented as a *RouterError so the
// lifecycle error sink (see the root package's OnError) gets a stable, typed
// code instead of an opaque string.
package errs

import "fmt"

// Code is one of the abstract error codes named in the component design.
type Code string

const (
	// Envelope errors.
	ParseError      Code = "PARSE_ERROR"
	InvalidEnvelope Code = "INVALID_ENVELOPE"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"
	ReservedType    Code = "RESERVED_TYPE"
	NoHandler       Code = "NO_HANDLER"

	// Admission errors.
	Backpressure Code = "BACKPRESSURE"

	// Validation errors.
	ValidationError         Code = "VALIDATION_ERROR"
	OutboundValidationError Code = "OUTBOUND_VALIDATION_ERROR"
	ReplyValidationError    Code = "REPLY_VALIDATION_ERROR"
	ProgressValidationError Code = "PROGRESS_VALIDATION_ERROR"

	// Transport errors.
	SendError        Code = "SEND_ERROR"
	ConnectionClosed Code = "CONNECTION_CLOSED"

	// Pub/Sub errors.
	InvalidTopic             Code = "INVALID_TOPIC"
	ACLSubscribe             Code = "ACL_SUBSCRIBE"
	ACLPublish               Code = "ACL_PUBLISH"
	MaxSubscriptionsExceeded Code = "MAX_SUBSCRIPTIONS_EXCEEDED"
	Unsupported              Code = "UNSUPPORTED"
	State                    Code = "STATE"
	AdapterError             Code = "ADAPTER_ERROR"
	SerializationError       Code = "SERIALIZATION_ERROR"
	Disconnected             Code = "DISCONNECTED"

	// RPC errors.
	RPCInflightLimit     Code = "RPC_INFLIGHT_LIMIT"
	RPCIdleTimeout       Code = "RPC_IDLE_TIMEOUT"
	RPCCancelled         Code = "RPC_CANCELLED"
	RPCDuplicateTerminal Code = "RPC_DUPLICATE_TERMINAL"

	// Configuration errors (programmer errors, panic synchronously).
	ConfigError Code = "CONFIG_ERROR"
)

// retryable is the fixed set of codes §7 marks as retryable.
var retryable = map[Code]bool{
	Backpressure:     true,
	ConnectionClosed: true,
	AdapterError:     true,
}

// RouterError is the structured error type routed to the lifecycle error sink
// and returned in PublishResult.Cause for publish-time failures (whose
// PublishResult.Error carries only the Code).
type RouterError struct {
	Code    Code
	Message string
	Details any
	Reason  string // only meaningful for InvalidTopic: "pattern" | "length"
	Cause   error
}

// New constructs a RouterError with no wrapped cause.
func New(code Code, message string) *RouterError {
	return &RouterError{Code: code, Message: message}
}

// Wrap constructs a RouterError wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *RouterError {
	return &RouterError{Code: code, Message: message, Cause: cause}
}

// WithDetails attaches structured details (e.g. validation issues) and returns e.
func (e *RouterError) WithDetails(details any) *RouterError {
	e.Details = details
	return e
}

// WithReason attaches the machine-readable INVALID_TOPIC reason and returns e.
func (e *RouterError) WithReason(reason string) *RouterError {
	e.Reason = reason
	return e
}

func (e *RouterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RouterError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error's code is one of the codes §7 names as
// retryable: BACKPRESSURE, CONNECTION_CLOSED, ADAPTER_ERROR.
func (e *RouterError) Retryable() bool {
	return retryable[e.Code]
}

// ConfigPanic panics with a RouterError of code ConfigError. Used for
// programmer errors detected at configuration time (duplicate route
// registration under the "error" merge policy, registering a reserved-prefix
// handler, calling Rpc() with no validation plugin applied).
func ConfigPanic(format string, args ...any) {
	panic(New(ConfigError, fmt.Sprintf(format, args...)))
}
