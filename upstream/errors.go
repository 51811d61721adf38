package upstream

import "fmt"

// ErrorKind classifies every failure a ToolCall can produce. Carried on
// every ToolResult whose Err is non-nil.
type ErrorKind int

const (
	Transport ErrorKind = iota
	Timeout
	TransientServer
	PermanentServer
	Authentication
	NotFound
	BreakerOpen
	NotConfigured
	Validation
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case Transport:
		return "Transport"
	case Timeout:
		return "Timeout"
	case TransientServer:
		return "TransientServer"
	case PermanentServer:
		return "PermanentServer"
	case Authentication:
		return "Authentication"
	case NotFound:
		return "NotFound"
	case BreakerOpen:
		return "BreakerOpen"
	case NotConfigured:
		return "NotConfigured"
	case Validation:
		return "Validation"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Retryable reports whether the orchestrator's retry policy considers this
// kind worth retrying (§4.3: Transport and TransientServer only; breaker
// trips mid-call are folded into the same retry path by the orchestrator).
func (k ErrorKind) Retryable() bool {
	switch k {
	case Transport, TransientServer:
		return true
	default:
		return false
	}
}

// HTTPStatus maps the kind to the status code the (out-of-scope) REST
// collaborator would use. Pure function, has no callers inside this module
// other than tests — it exists purely so that collaborator has something to
// call, per the documented interface boundary.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case Transport:
		return 503
	case Timeout:
		return 504
	case TransientServer:
		return 503
	case PermanentServer:
		return 500
	case Authentication:
		return 503
	case NotFound:
		return 400
	case BreakerOpen:
		return 503
	case NotConfigured:
		return 400
	case Validation:
		return 400
	case Cancelled:
		return 0 // no response
	default:
		return 500
	}
}

// CallError is the concrete error type carried by ToolResult.Err.
type CallError struct {
	Kind               ErrorKind
	Message            string
	OriginatingUpstream Kind
	ToolName           string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %s", e.Kind, e.OriginatingUpstream, e.ToolName, e.Message)
}

// NewError builds a CallError and the ToolResult wrapping it.
func NewError(kind ErrorKind, upstream Kind, toolName, message string) ToolResult {
	return ToolResult{
		Err: &CallError{
			Kind:               kind,
			Message:            message,
			OriginatingUpstream: upstream,
			ToolName:           toolName,
		},
		OriginatingUpstream: upstream,
		ToolName:            toolName,
	}
}
