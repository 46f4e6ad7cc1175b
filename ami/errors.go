package ami

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ProtocolError signals a malformed banner, malformed message, or a
// structural violation (body on a non-Follows response, no body on a
// Follows response, an unknown response word, a Link/Unlink
// precondition violation, an unknown Dial sub-event, ...). Receiving
// one closes the connection.
type ProtocolError struct {
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ami: protocol error: %s: %v", e.Reason, e.Cause)
	}
	return "ami: protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func wrapProtocolError(reason string, cause error) *ProtocolError {
	return &ProtocolError{Reason: reason, Cause: eris.Wrap(cause, reason)}
}

// ActionError is the rejection reason delivered to a Pending when the
// server responds to an action with "Response: Error". The connection
// stays open.
type ActionError struct {
	Headers Message
}

func (e *ActionError) Error() string {
	if msg := e.Headers.Get("message"); msg != "" {
		return "ami: action error: " + msg
	}
	return fmt.Sprintf("ami: action error: %v", map[string]string(e.Headers))
}

// UnknownActionError is raised when a response arrives whose ActionID
// is not currently tracked (e.g. a local cancellation raced the
// server). It is logged and ignored by default; the connection stays
// open.
type UnknownActionError struct {
	ActionID string
}

func (e *UnknownActionError) Error() string {
	return "ami: response for unknown actionid " + e.ActionID
}

// UnknownCommandError is raised when an AsyncAGI Exec sub-event
// arrives whose CommandID is not currently tracked on the channel that
// issued it. Logged and ignored by default.
type UnknownCommandError struct {
	CommandID string
}

func (e *UnknownCommandError) Error() string {
	return "ami: AsyncAGI exec for unknown commandid " + e.CommandID
}

// AGIError is the rejection reason for a SendAGI Pending when the
// corresponding Exec sub-event reports a non-200 code.
type AGIError struct {
	Code    int
	Message string
}

func (e *AGIError) Error() string {
	return fmt.Sprintf("ami: AGI error %d: %s", e.Code, e.Message)
}

// Disconnected is the rejection reason delivered to every outstanding
// Pending (actions, AGI commands, async originations) when the Conn is
// closed, by Conn.Close or by a protocol fault. A transport closed by
// the peer is not reported to the Conn; pendings stay outstanding until
// Close is called.
type Disconnected struct {
	Cause error
}

func (e *Disconnected) Error() string {
	if e.Cause != nil {
		return "ami: disconnected: " + e.Cause.Error()
	}
	return "ami: disconnected"
}

func (e *Disconnected) Unwrap() error { return e.Cause }

// isNonDrop reports whether err belongs to the connection's
// configured non-drop error kind set. Unclassified errors (a type not
// present in the set, or not one of the five error kinds at all) are
// treated as drop errors: the connection is closed.
func isNonDrop(nonDrop []ErrorKind, err error) bool {
	kind := classify(err)
	for _, k := range nonDrop {
		if k == kind {
			return true
		}
	}
	return false
}

// ErrorKind names one of the five error classes from the error policy
// for use in the connection's configurable non-drop set.
type ErrorKind int

const (
	KindProtocolError ErrorKind = iota
	KindActionError
	KindUnknownActionError
	KindUnknownCommandError
	KindAGIError
	KindDisconnected
	kindOther
)

func classify(err error) ErrorKind {
	switch err.(type) {
	case *ProtocolError:
		return KindProtocolError
	case *ActionError:
		return KindActionError
	case *UnknownActionError:
		return KindUnknownActionError
	case *UnknownCommandError:
		return KindUnknownCommandError
	case *AGIError:
		return KindAGIError
	case *Disconnected:
		return KindDisconnected
	default:
		return kindOther
	}
}

// DefaultNonDropErrors is the default configurable non-drop set named
// in the error policy: these are logged and ignored rather than
// closing the connection.
func DefaultNonDropErrors() []ErrorKind {
	return []ErrorKind{KindUnknownActionError, KindUnknownCommandError}
}
