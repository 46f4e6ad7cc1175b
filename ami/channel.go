package ami

import (
	"strconv"
	"strings"
	"sync"
)

// Channel state codes, canonical across both the modern
// (ChannelState/ChannelStateDesc headers) and legacy (State header)
// dialects.
const (
	StateDown           = 0
	StateRsrvd           = 1
	StateOffHook         = 2
	StateDialing         = 3
	StateRing            = 4
	StateRinging         = 5
	StateUp              = 6
	StateBusy            = 7
	StateDialingOffhook  = 8
	StatePreRing         = 9
)

var stateDescs = map[int]string{
	StateDown:          "Down",
	StateRsrvd:         "Rsrvd",
	StateOffHook:       "OffHook",
	StateDialing:       "Dialing",
	StateRing:          "Ring",
	StateRinging:       "Ringing",
	StateUp:            "Up",
	StateBusy:          "Busy",
	StateDialingOffhook: "Dialing Offhook",
	StatePreRing:       "Pre-ring",
}

var stateCodes = func() map[string]int {
	m := make(map[string]int, len(stateDescs))
	for code, desc := range stateDescs {
		m[strings.ToLower(desc)] = code
	}
	return m
}()

// StateDesc returns the canonical description for a channel state
// code, or "" if code is not one of the ten known states.
func StateDesc(code int) string { return stateDescs[code] }

// CallerID is the (number, name) pair tracked on a Channel.
type CallerID struct {
	Number string
	Name   string
}

// Extension is one entry of a channel's dialplan traversal log,
// recorded on every Newexten event.
type Extension struct {
	Context     string
	Extension   string
	Priority    int
	Application string
	AppData     string
}

// ChannelHandlers is the struct-of-optional-callbacks applications
// attach to a Channel to observe its lifecycle. Every field defaults
// to nil (a no-op); set only the ones you need.
type ChannelHandlers struct {
	NewState        func(state int, desc string)
	NewCallerID     func(number, name string)
	VariableSet     func(variable, value string)
	ExtensionEntered func(ctx, ext string, priority int, app, appData string)
	Renamed         func(oldName, newName string)
	Linked          func(peer *Channel)
	Unlinked        func(peer *Channel)
	DialBegun       func(destination string, dialString *string)
	DialEnded       func(dialStatus *string)
	HungUp          func(cause int, causeText string)
	AsyncAGIStarted func(ctx, ext string, priority int, env map[string]string)
}

// Channel is a live Asterisk channel (call leg) tracked by the
// registry. Applications never construct one directly; they receive
// non-owning access to one via Conn.OnNewChannel or Conn.Channel.
type Channel struct {
	name      string
	Params    Message
	State     int
	CallerID  CallerID
	Variables map[string]string
	Extensions []Extension
	linkedTo  *Channel

	Handlers ChannelHandlers

	// UserData is free for application use: attach per-channel state
	// here instead of subclassing, since Go has no inheritance.
	UserData any

	agiMu          sync.Mutex
	pendingAGI     map[string]*Pending[AGIResult]
	customHandlers map[string]EventHandler

	conn *Conn
}

// registerAGI records a Pending awaiting the AsyncAGI Exec event
// correlated by commandID.
func (ch *Channel) registerAGI(commandID string, p *Pending[AGIResult]) {
	ch.agiMu.Lock()
	defer ch.agiMu.Unlock()
	ch.pendingAGI[commandID] = p
}

// popAGI removes and returns the Pending registered under commandID,
// if any.
func (ch *Channel) popAGI(commandID string) (*Pending[AGIResult], bool) {
	ch.agiMu.Lock()
	defer ch.agiMu.Unlock()
	p, ok := ch.pendingAGI[commandID]
	if ok {
		delete(ch.pendingAGI, commandID)
	}
	return p, ok
}

func (ch *Channel) rejectAGI(err error) {
	ch.agiMu.Lock()
	defer ch.agiMu.Unlock()
	for id, p := range ch.pendingAGI {
		p.reject(err)
		delete(ch.pendingAGI, id)
	}
}

// Name returns the channel's current name (e.g. "SIP/202-0"). It
// changes atomically across a Rename event.
func (ch *Channel) Name() string { return ch.name }

// LinkedTo returns the channel this one is currently Link-ed to, or
// nil.
func (ch *Channel) LinkedTo() *Channel { return ch.linkedTo }

// SendAction sends an action scoped to this channel: its Channel
// field is populated automatically.
func (ch *Channel) SendAction(name string, fields Message) *Pending[ActionResult] {
	out := Message{}
	for k, v := range fields {
		out[k] = v
	}
	out["channel"] = ch.name
	return ch.conn.SendAction(name, out)
}

func newChannelFromMessage(conn *Conn, name string, m Message) *Channel {
	ch := &Channel{
		name:           name,
		Params:         Message{},
		Variables:      map[string]string{},
		pendingAGI:     map[string]*Pending[AGIResult]{},
		customHandlers: map[string]EventHandler{},
		conn:           conn,
	}
	for k, v := range m {
		if k == "channelstate" {
			ch.Params[k] = v // normalized below alongside state/desc
			continue
		}
		ch.Params[k] = v
	}
	applyStateParams(ch, m)
	applyCallerID(ch, m)
	return ch
}

// applyStateParams implements the dual-dialect state initialization
// from spec §4.5: modern servers supply channelstate (int) and
// channelstatedesc (string) directly; legacy servers supply only a
// State header naming the description, from which both are
// synthesized.
func applyStateParams(ch *Channel, m Message) {
	if raw, ok := m["channelstate"]; ok {
		state, _ := strconv.Atoi(raw)
		ch.State = state
		ch.Params["channelstate"] = raw
		if desc, ok := m["channelstatedesc"]; ok {
			ch.Params["channelstatedesc"] = desc
		} else {
			ch.Params["channelstatedesc"] = StateDesc(state)
		}
		return
	}

	desc := m["state"]
	state := stateCodes[strings.ToLower(desc)]
	ch.State = state
	ch.Params["channelstate"] = strconv.Itoa(state)
	ch.Params["channelstatedesc"] = stateDescs[state]
}

func applyCallerID(ch *Channel, m Message) {
	num, ok := m["calleridnum"]
	if !ok {
		num = m["callerid"]
	}
	name := m["calleridname"]
	ch.CallerID = CallerID{Number: num, Name: name}
	ch.Params["calleridnum"] = num
	ch.Params["calleridname"] = name
}

// registry owns every live Channel exclusively; it is never exposed
// directly, only through Conn's channel-facing methods.
type registry struct {
	mu     sync.Mutex
	byName map[string]*Channel
}

func newRegistry() *registry {
	return &registry{byName: map[string]*Channel{}}
}

func (r *registry) get(name string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.byName[name]
	return ch, ok
}

func (r *registry) insert(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[ch.name] = ch
}

func (r *registry) remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

func (r *registry) rename(oldName, newName string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.byName[oldName]
	if !ok {
		return nil, false
	}
	delete(r.byName, oldName)
	ch.name = newName
	r.byName[newName] = ch
	return ch, true
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

func (r *registry) rejectAllAGI(err error) {
	r.mu.Lock()
	channels := make([]*Channel, 0, len(r.byName))
	for _, ch := range r.byName {
		channels = append(channels, ch)
	}
	r.mu.Unlock()

	for _, ch := range channels {
		ch.rejectAGI(err)
	}
}

// --- event_* transitions, grounded on octothorpe/channel.py ---

func (ch *Channel) onNewState(m Message) error {
	if raw, ok := m["channelstate"]; ok {
		state, err := strconv.Atoi(raw)
		if err != nil {
			return wrapProtocolError("bad channelstate", err)
		}
		ch.Params["channelstate"] = raw
		ch.Params["channelstatedesc"] = m["channelstatedesc"]
		ch.State = state
	} else {
		desc := m["state"]
		state, ok := stateCodes[strings.ToLower(desc)]
		if !ok {
			return &ProtocolError{Reason: "unknown legacy state: " + desc}
		}
		ch.State = state
		ch.Params["channelstate"] = strconv.Itoa(state)
		ch.Params["channelstatedesc"] = stateDescs[state]
	}
	if ch.Handlers.NewState != nil {
		ch.Handlers.NewState(ch.State, ch.Params["channelstatedesc"])
	}
	return nil
}

func (ch *Channel) onNewCallerID(m Message) error {
	applyCallerID(ch, m)
	if ch.Handlers.NewCallerID != nil {
		ch.Handlers.NewCallerID(ch.CallerID.Number, ch.CallerID.Name)
	}
	return nil
}

func (ch *Channel) onVarSet(m Message) error {
	variable := m["variable"]
	value := m["value"]
	ch.Variables[variable] = value
	if ch.Handlers.VariableSet != nil {
		ch.Handlers.VariableSet(variable, value)
	}
	return nil
}

func (ch *Channel) onNewExten(m Message) error {
	priority, err := strconv.Atoi(m["priority"])
	if err != nil {
		return wrapProtocolError("bad newexten priority", err)
	}
	ext := Extension{
		Context:     m["context"],
		Extension:   m["extension"],
		Priority:    priority,
		Application: m["application"],
		AppData:     m["appdata"],
	}
	ch.Extensions = append(ch.Extensions, ext)
	if ch.Handlers.ExtensionEntered != nil {
		ch.Handlers.ExtensionEntered(ext.Context, ext.Extension, ext.Priority, ext.Application, ext.AppData)
	}
	return nil
}

func (ch *Channel) onHangup(conn *Conn, m Message) error {
	cause, _ := strconv.Atoi(m["cause"])
	causeText := m["cause-txt"]
	if ch.Handlers.HungUp != nil {
		ch.Handlers.HungUp(cause, causeText)
	}
	conn.registry.remove(ch.name)
	return nil
}

func (ch *Channel) onRename(conn *Conn, m Message) error {
	oldName := ch.name
	newName := m["newname"]
	if _, ok := conn.registry.rename(oldName, newName); !ok {
		return &ProtocolError{Reason: "rename of unregistered channel " + oldName}
	}
	if ch.Handlers.Renamed != nil {
		ch.Handlers.Renamed(oldName, newName)
	}
	return nil
}

func (ch *Channel) onLink(conn *Conn, m Message) error {
	if ch.linkedTo != nil {
		return &ProtocolError{Reason: "Link while already linked"}
	}
	otherName := m["channel1"]
	if otherName == ch.name {
		otherName = m["channel2"]
	}
	peer, ok := conn.registry.get(otherName)
	if !ok {
		return &ProtocolError{Reason: "Link to unregistered channel " + otherName}
	}
	ch.linkedTo = peer
	if ch.Handlers.Linked != nil {
		ch.Handlers.Linked(peer)
	}
	return nil
}

func (ch *Channel) onUnlink(m Message) error {
	if ch.linkedTo == nil {
		return &ProtocolError{Reason: "Unlink while not linked"}
	}
	peerName := ch.linkedTo.name
	if peerName != m["channel1"] && peerName != m["channel2"] {
		return &ProtocolError{Reason: "Unlink from channel we are not linked to"}
	}
	peer := ch.linkedTo
	ch.linkedTo = nil
	if ch.Handlers.Unlinked != nil {
		ch.Handlers.Unlinked(peer)
	}
	return nil
}

func (ch *Channel) onDial(m Message) error {
	subevent := strings.ToLower(m["subevent"])
	if subevent == "" {
		subevent = "begin"
	}

	switch subevent {
	case "begin":
		var dialString *string
		if v, ok := m["dialstring"]; ok {
			dialString = &v
		}
		if ch.Handlers.DialBegun != nil {
			ch.Handlers.DialBegun(m["destination"], dialString)
		}
		return nil
	case "end":
		var status *string
		if v, ok := m["dialstatus"]; ok {
			status = &v
		}
		if ch.Handlers.DialEnded != nil {
			ch.Handlers.DialEnded(status)
		}
		return nil
	default:
		return &ProtocolError{Reason: "unknown dial subevent " + subevent}
	}
}

// unlinkPeerOnHangup proactively clears a stale back-reference: if a
// linked channel hangs up, its peer's linkedTo must not dangle (spec
// §9, "Cycle in link pairs").
func unlinkPeerOnHangup(conn *Conn, ch *Channel) {
	if ch.linkedTo == nil {
		return
	}
	peer := ch.linkedTo
	if peer.linkedTo == ch {
		peer.linkedTo = nil
	}
	ch.linkedTo = nil
}
