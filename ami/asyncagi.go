package ami

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/CyCoreSystems/amigo/ami/agi"
)

// AGIResult is the outcome of a queued AsyncAGI command: the numeric
// result Asterisk's AGI dispatcher returned, plus any extra key=value
// pairs the command appended to its 200 response line.
type AGIResult struct {
	Result int
	Params map[string]string
}

// AsyncAGIStart is delivered when an AsyncAGI session begins on a
// channel originated via OriginateAsyncAGI: the channel it started on
// and its parsed AGI environment.
type AsyncAGIStart struct {
	Channel *Channel
	Env     map[string]string
}

// OriginateAsyncAGI originates a call to channel, connecting it to the
// dialplan's AsyncAGI entry point (Application "AGI", Data
// "agi:async"). The returned Pending resolves once the corresponding
// AsyncAGI Start event arrives, correlated via a generated
// AsyncOrigId channel variable (spec §4.8), rather than via
// OriginateResponse: the origination may race the dialplan's own
// progress, so the two are tracked independently.
func (c *Conn) OriginateAsyncAGI(channel string, callerID *string) *Pending[AsyncAGIStart] {
	origID := uuid.NewString()

	out := newPending[AsyncAGIStart]()
	c.mu.Lock()
	c.pendingAsyncOrigins[origID] = out
	c.mu.Unlock()

	fields := Message{
		"channel":     channel,
		"application": "AGI",
		"data":        "agi:async",
		"variable":    "AsyncOrigId=" + origID,
		"async":       "true",
		"actionid":    generateActionID(),
	}
	if callerID != nil {
		fields["callerid"] = *callerID
	}

	queued := c.sendAction("Originate", fields)
	queued.onSettled(func(_ ActionResult, err error) {
		if err == nil {
			return
		}
		c.mu.Lock()
		delete(c.pendingAsyncOrigins, origID)
		c.mu.Unlock()
		out.reject(err)
	})

	return out
}

// SendAGI queues an AGI command on a channel already running
// AsyncAGI, building the wire command string with agi.Build. The
// per-command pending is armed once the action's queueing response
// arrives successfully (spec §4.8); the returned Pending resolves
// when the corresponding AsyncAGI Exec event arrives, or rejects with
// *AGIError if the command's response code was not 200, or with the
// queueing failure itself if the action was never accepted.
func (ch *Channel) SendAGI(cmd agi.Cmd, args ...string) *Pending[AGIResult] {
	commandID := uuid.NewString()
	out := newPending[AGIResult]()

	queued := ch.conn.sendAction("AGI", Message{
		"channel":   ch.name,
		"command":   agi.Build(cmd, args...),
		"commandid": commandID,
	})
	queued.onSettled(func(_ ActionResult, err error) {
		if err != nil {
			out.reject(err)
			return
		}
		ch.registerAGI(commandID, out)
	})

	return out
}

// handleAsyncAGI implements the AsyncAGI sub-event dispatcher (spec
// §4.8): Start resolves either the matching AsyncOrigId handshake or
// the channel's CEP-based AsyncAGIStarted hook; Exec correlates a
// queued AGI command by CommandID.
func (c *Conn) handleAsyncAGI(m Message) {
	ch, ok := c.registry.get(m["channel"])
	if !ok {
		c.handleFault(&ProtocolError{Reason: "AsyncAGI event for unregistered channel " + m["channel"]})
		return
	}

	switch strings.ToLower(m["subevent"]) {
	case "start":
		c.handleAsyncAGIStart(ch, m)
	case "exec":
		c.handleAsyncAGIExec(ch, m)
	default:
		c.handleFault(&ProtocolError{Reason: "unknown AsyncAGI subevent " + m["subevent"]})
	}
}

func (c *Conn) handleAsyncAGIStart(ch *Channel, m Message) {
	env, err := parseAGIEnv(m["env"])
	if err != nil {
		c.handleFault(err)
		return
	}

	if origID, ok := ch.Variables["AsyncOrigId"]; ok {
		c.mu.Lock()
		p, found := c.pendingAsyncOrigins[origID]
		if found {
			delete(c.pendingAsyncOrigins, origID)
		}
		c.mu.Unlock()
		if found {
			p.resolve(AsyncAGIStart{Channel: ch, Env: env})
			return
		}
	}

	if ch.Handlers.AsyncAGIStarted == nil {
		return
	}
	priority, _ := strconv.Atoi(env["agi_priority"])
	ch.Handlers.AsyncAGIStarted(env["agi_context"], env["agi_extension"], priority, env)
}

func (c *Conn) handleAsyncAGIExec(ch *Channel, m Message) {
	commandID := m["commandid"]
	p, ok := ch.popAGI(commandID)
	if !ok {
		c.handleFault(&UnknownCommandError{CommandID: commandID})
		return
	}

	raw, err := url.QueryUnescape(m["result"])
	if err != nil {
		p.reject(wrapProtocolError("bad AsyncAGI result encoding", err))
		return
	}

	code, rest, err := agi.ParseResult(raw)
	if err != nil {
		p.reject(wrapProtocolError("bad AsyncAGI result", err))
		return
	}
	if code != 200 {
		p.reject(&AGIError{Code: code, Message: rest})
		return
	}

	params, err := agi.ParseParams(rest)
	if err != nil {
		p.reject(wrapProtocolError("bad AsyncAGI result params", err))
		return
	}

	resultStr, ok := params["result"]
	if !ok {
		p.reject(&ProtocolError{Reason: "AsyncAGI result missing result="})
		return
	}
	delete(params, "result")

	result, err := strconv.Atoi(resultStr)
	if err != nil {
		p.reject(wrapProtocolError("bad AsyncAGI result value", err))
		return
	}

	p.resolve(AGIResult{Result: result, Params: params})
}

// parseAGIEnv decodes the AsyncAGI Start event's Env header: a
// URL-encoded, newline-separated block of "key: value" lines.
func parseAGIEnv(raw string) (map[string]string, error) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, wrapProtocolError("bad AsyncAGI env encoding", err)
	}

	env := map[string]string{}
	for _, line := range strings.Split(decoded, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, &ProtocolError{Reason: "malformed AsyncAGI env line: " + line}
		}
		env[key] = value
	}
	return env, nil
}
