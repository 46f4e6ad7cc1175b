package ami

// OriginationResult is the final outcome of an Originate, delivered
// once the correlated OriginateResponse event arrives.
type OriginationResult struct {
	Headers Message
}

// Originate places a call to channel/context/exten/priority (spec
// §4.7). The returned Pending resolves with the initial queueing
// response; use OriginateResult to await the eventual
// OriginateResponse event correlated by the same ActionID.
func (c *Conn) Originate(channel, ctx, exten, priority string, callerID *string) *Pending[ActionResult] {
	fields := Message{
		"channel":  channel,
		"context":  ctx,
		"exten":    exten,
		"priority": priority,
		"async":    "true",
		"actionid": generateActionID(),
	}
	if callerID != nil {
		fields["callerid"] = *callerID
	}
	return c.originate(fields)
}

// OriginateApp places a call to channel, connecting it directly to an
// Application/Data pair instead of a dialplan location. This
// supplements octothorpe's CEP-only form with the Application/Data
// form Asterisk's Originate action also accepts.
func (c *Conn) OriginateApp(channel, application, data string, callerID *string) *Pending[ActionResult] {
	fields := Message{
		"channel":     channel,
		"application": application,
		"data":        data,
		"async":       "true",
		"actionid":    generateActionID(),
	}
	if callerID != nil {
		fields["callerid"] = *callerID
	}
	return c.originate(fields)
}

func (c *Conn) originate(fields Message) *Pending[ActionResult] {
	actionID := fields["actionid"]

	c.mu.Lock()
	c.pendingOriginations[actionID] = newPending[OriginationResult]()
	c.mu.Unlock()

	queued := c.sendAction("Originate", fields)
	queued.onSettled(func(_ ActionResult, err error) {
		if err == nil {
			return
		}
		c.mu.Lock()
		p, ok := c.pendingOriginations[actionID]
		if ok {
			delete(c.pendingOriginations, actionID)
		}
		c.mu.Unlock()
		if ok {
			p.reject(err)
		}
	})
	return queued
}

// OriginateResult returns the Pending that resolves when the
// OriginateResponse event correlated with actionID (the ActionID that
// Originate/OriginateApp generated and sent in the Originate action)
// arrives. Originate and OriginateApp do not return that ActionID, and
// the queueing response's Headers do not carry it, since the correlator
// removes it. It must be called after a call to Originate/OriginateApp
// with that actionid, and before its OriginateResponse arrives.
func (c *Conn) OriginateResult(actionID string) (*Pending[OriginationResult], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pendingOriginations[actionID]
	return p, ok
}

// handleOriginateResponse correlates an OriginateResponse event back
// to the pending origination registered under the same ActionID (spec
// §4.7).
func (c *Conn) handleOriginateResponse(m Message) {
	actionID := m["actionid"]

	c.mu.Lock()
	p, ok := c.pendingOriginations[actionID]
	if ok {
		delete(c.pendingOriginations, actionID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	if m["response"] == "Failure" || m["response"] == "Error" {
		p.reject(&ActionError{Headers: m})
		return
	}
	p.resolve(OriginationResult{Headers: m})
}
