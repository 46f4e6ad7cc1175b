package ami

import "strings"

// EventHandler is the application-facing callback for an arbitrary
// named event, registered on a Conn or a Channel via OnEvent. It is
// the "typed table" registration API named in spec §9 as a
// replacement for the reference implementation's reflective
// event_<Name> method lookup.
type EventHandler func(m Message)

// NewChannelFunc is called once per Newchannel event, after the new
// Channel has been constructed and inserted into the registry.
type NewChannelFunc func(name string, ch *Channel)

// canonical channel-transition event names (lowercased), each backed
// by a fixed state-machine method on Channel rather than a
// user-registered handler: the protocol's state transitions are not
// optional the way an application's observation hooks are.
const (
	evNewstate    = "newstate"
	evNewcallerid = "newcallerid"
	evVarset      = "varset"
	evNewexten    = "newexten"
	evRename      = "rename"
	evHangup      = "hangup"
	evLink        = "link"
	evUnlink      = "unlink"
	evDial        = "dial"
)

var channelTransitionEvents = map[string]bool{
	evNewstate: true, evNewcallerid: true, evVarset: true, evNewexten: true,
	evRename: true, evHangup: true, evLink: true, evUnlink: true, evDial: true,
}

// routingNames implements the routing table from spec §4.4: ordered,
// first match wins.
func routingNames(event string, m Message) []string {
	event = strings.ToLower(event)

	if event == evRename {
		if old, ok := m["oldname"]; ok {
			return []string{old}
		}
	}

	if channel, ok := m["channel"]; ok && event != "newchannel" && event != "channelreload" {
		return []string{channel}
	}

	if event == evLink || event == evUnlink {
		c1, ok1 := m["channel1"]
		c2, ok2 := m["channel2"]
		if ok1 && ok2 {
			return []string{c1, c2}
		}
	}

	if event == evDial {
		if source, ok := m["source"]; ok {
			return []string{source}
		}
	}

	return nil
}

// handleEvent implements the dispatcher (spec §4.4): compute the
// routing set, dispatch to matching channel handlers, and fall back
// to the connection-level handler table when none apply.
func (c *Conn) handleEvent(event string, m Message) {
	lower := strings.ToLower(event)
	names := routingNames(event, m)

	dispatched := false
	for _, name := range names {
		ch, ok := c.registry.get(name)
		if !ok {
			continue
		}
		if c.dispatchToChannel(lower, ch, m) {
			dispatched = true
		}
	}

	if dispatched {
		return
	}

	c.dispatchToConn(lower, m)
}

// dispatchToChannel runs the channel's built-in transition for a
// canonical event (if any), then its custom handler table, reporting
// whether anything actually handled the event.
func (c *Conn) dispatchToChannel(event string, ch *Channel, m Message) bool {
	handled := false

	if channelTransitionEvents[event] {
		handled = true
		if err := c.applyChannelTransition(event, ch, m); err != nil {
			c.handleFault(err)
			return true
		}
	}

	if h, ok := ch.customHandlers[event]; ok {
		handled = true
		h(m)
	}

	return handled
}

func (c *Conn) applyChannelTransition(event string, ch *Channel, m Message) error {
	switch event {
	case evNewstate:
		return ch.onNewState(m)
	case evNewcallerid:
		return ch.onNewCallerID(m)
	case evVarset:
		return ch.onVarSet(m)
	case evNewexten:
		return ch.onNewExten(m)
	case evRename:
		return ch.onRename(c, m)
	case evHangup:
		unlinkPeerOnHangup(c, ch)
		return ch.onHangup(c, m)
	case evLink:
		return ch.onLink(c, m)
	case evUnlink:
		return ch.onUnlink(m)
	case evDial:
		return ch.onDial(m)
	}
	return nil
}

// dispatchToConn runs the connection-level handling for an event that
// no channel claimed: the hardwired Newchannel/OriginateResponse/
// AsyncAGI-origination-handshake behavior, then any user-registered
// handler.
func (c *Conn) dispatchToConn(event string, m Message) {
	switch event {
	case "newchannel":
		c.handleNewChannel(m)
	case "originateresponse":
		c.handleOriginateResponse(m)
	case "asyncagi":
		c.handleAsyncAGI(m)
	}

	c.mu.Lock()
	h, ok := c.eventHandlers[event]
	c.mu.Unlock()
	if ok {
		h(m)
	}
}

// OnEvent registers a connection-level handler for a named event. It
// only fires for events that no channel in the current routing set
// claims (spec §4.4): if the event names a channel, and that channel
// has a handler (built-in or custom), the connection-level handler is
// not invoked for that occurrence.
func (c *Conn) OnEvent(event string, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandlers[strings.ToLower(event)] = h
}

// OnNewChannel registers the application hook invoked once a new
// Channel has been constructed and inserted into the registry.
func (c *Conn) OnNewChannel(f NewChannelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newChannelFunc = f
}

// OnEvent registers a handler for a named event scoped to this
// channel. It is consulted after (and independently of) the built-in
// state-machine transition for canonical event names.
func (ch *Channel) OnEvent(event string, h EventHandler) {
	ch.customHandlers[strings.ToLower(event)] = h
}

func (c *Conn) handleNewChannel(m Message) {
	name, ok := m["channel"]
	if !ok {
		c.handleFault(&ProtocolError{Reason: "Newchannel without channel header"})
		return
	}
	ch := newChannelFromMessage(c, name, m)
	c.registry.insert(ch)
	if c.newChannelFunc != nil {
		c.newChannelFunc(name, ch)
	}
}
