package ami

import (
	"strings"

	"github.com/google/uuid"
)

// ActionResult is the successful resolution of an action Pending: the
// response headers (ActionID and Response already removed) and, for a
// "Follows" response, the command body.
type ActionResult struct {
	Headers Message
	Body    *string
}

// generateActionID returns a fresh, random, connection-unique action
// identifier. A counter would do too, but the reference design (and
// the server, which merely echoes it back) only requires uniqueness,
// and a random UUID sidesteps any cross-connection collision risk.
func generateActionID() string {
	return uuid.NewString()
}

// sendAction is the action correlator's send path (spec §4.3): it
// stamps ActionID and Action, serializes, registers a pending, and
// writes the frame.
func (c *Conn) sendAction(name string, fields Message) *Pending[ActionResult] {
	p := newPending[ActionResult]()

	out := Message{}
	for k, v := range fields {
		out[strings.ToLower(k)] = v
	}

	actionID := out["actionid"]
	if actionID == "" {
		actionID = generateActionID()
		out["actionid"] = actionID
	}
	out["action"] = name

	c.mu.Lock()
	c.pendingActions[actionID] = p
	c.mu.Unlock()

	if err := c.write(serialize(out)); err != nil {
		c.mu.Lock()
		delete(c.pendingActions, actionID)
		c.mu.Unlock()
		p.reject(err)
	}

	return p
}

// SendAction sends an arbitrary action with caller-supplied fields,
// returning a Pending that resolves with the response headers (and
// body, for Follows) or rejects with an *ActionError.
//
// If fields already carries an "actionid" key it is preserved
// verbatim; otherwise one is generated.
func (c *Conn) SendAction(name string, fields Message) *Pending[ActionResult] {
	return c.sendAction(name, fields)
}

// handleResponse implements the correlator's response path (spec
// §4.3): pop ActionID, look up the pending, and resolve/reject it
// according to the Success/Error/Follows shape rules.
func (c *Conn) handleResponse(response string, m Message, body *string) error {
	actionID, ok := popCI(m, "actionid")
	if !ok {
		return &ProtocolError{Reason: "response without actionid"}
	}

	c.mu.Lock()
	p, found := c.pendingActions[actionID]
	if found {
		delete(c.pendingActions, actionID)
	}
	c.mu.Unlock()

	if !found {
		err := &UnknownActionError{ActionID: actionID}
		c.handleFault(err)
		return nil
	}

	switch strings.ToLower(response) {
	case "success":
		if body != nil {
			err := &ProtocolError{Reason: "body in Success response"}
			p.reject(err)
			return err
		}
		p.resolve(ActionResult{Headers: m})
		return nil
	case "error":
		if body != nil {
			err := &ProtocolError{Reason: "body in Error response"}
			p.reject(err)
			return err
		}
		p.reject(&ActionError{Headers: m})
		return nil
	case "follows":
		if body == nil {
			err := &ProtocolError{Reason: "no body on Follows response"}
			p.reject(err)
			return err
		}
		p.resolve(ActionResult{Headers: m, Body: body})
		return nil
	default:
		err := &ProtocolError{Reason: "bad response: " + response}
		p.reject(err)
		return err
	}
}

// rejectAllPending is invoked on connection close: every in-flight
// action, AGI command, and async origination is rejected with
// Disconnected.
func (c *Conn) rejectAllPending(cause error) {
	c.mu.Lock()
	actions := c.pendingActions
	c.pendingActions = map[string]*Pending[ActionResult]{}
	origins := c.pendingOriginations
	c.pendingOriginations = map[string]*Pending[OriginationResult]{}
	asyncOrigins := c.pendingAsyncOrigins
	c.pendingAsyncOrigins = map[string]*Pending[AsyncAGIStart]{}
	c.mu.Unlock()

	err := &Disconnected{Cause: cause}
	for _, p := range actions {
		p.reject(err)
	}
	for _, p := range origins {
		p.reject(err)
	}
	for _, p := range asyncOrigins {
		p.reject(err)
	}

	c.registry.rejectAllAGI(err)
}
