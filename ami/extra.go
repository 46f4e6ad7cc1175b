package ami

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// This file adapts the teacher's convenience action wrappers (every
// one of them a thin Message literal plus SendAction) to the Pending
// correlator: each returns the action's own *Pending[ActionResult]
// rather than taking a callback pointer.

// Hangup hangs up channel.
func (c *Conn) Hangup(channel string) *Pending[ActionResult] {
	return c.SendAction("Hangup", Message{"channel": channel})
}

// Redirect transfers channel to context/exten/priority.
func (c *Conn) Redirect(channel, ctx, exten, priority string) *Pending[ActionResult] {
	return c.SendAction("Redirect", Message{
		"channel":  channel,
		"context":  ctx,
		"exten":    exten,
		"priority": priority,
	})
}

// Logoff logs off the connection. The server closes the connection in
// response; every other outstanding Pending is rejected with
// Disconnected only once Conn.Close is called.
func (c *Conn) Logoff() *Pending[ActionResult] {
	return c.SendAction("Logoff", Message{})
}

// Bridge bridges two channels already present in the PBX.
func (c *Conn) Bridge(chan1, chan2 string, tone bool) *Pending[ActionResult] {
	t := "no"
	if tone {
		t = "yes"
	}
	return c.SendAction("Bridge", Message{
		"channel1": chan1,
		"channel2": chan2,
		"tone":     t,
	})
}

// Command runs an Asterisk CLI command, returning its output as the
// response's Body.
func (c *Conn) Command(cmd string) *Pending[ActionResult] {
	return c.SendAction("Command", Message{"command": cmd})
}

// ConfbridgeList requests a conference's participant list. The
// participants themselves arrive as a run of ConfbridgeListMember
// events followed by ConfbridgeListComplete; consume them via
// OnEvent rather than the returned Pending, which only resolves the
// initial queueing response.
func (c *Conn) ConfbridgeList(conference string) *Pending[ActionResult] {
	return c.SendAction("ConfbridgeList", Message{"conference": conference})
}

// ConfbridgeKick kicks a participant from a Confbridge conference.
func (c *Conn) ConfbridgeKick(conference, channel string) *Pending[ActionResult] {
	return c.SendAction("ConfbridgeKick", Message{
		"conference": conference,
		"channel":    channel,
	})
}

// ConfbridgeToggleMute mutes or unmutes a Confbridge participant.
func (c *Conn) ConfbridgeToggleMute(conference, channel string, mute bool) *Pending[ActionResult] {
	action := "ConfbridgeUnmute"
	if mute {
		action = "ConfbridgeMute"
	}
	return c.SendAction(action, Message{
		"conference": conference,
		"channel":    channel,
	})
}

// ConfbridgeStartRecord starts recording a Confbridge conference to
// file (or the conference's default recording file, if file is "").
func (c *Conn) ConfbridgeStartRecord(conference, file string) *Pending[ActionResult] {
	fields := Message{"conference": conference}
	if file != "" {
		fields["recordfile"] = file
	}
	return c.SendAction("ConfbridgeStartRecord", fields)
}

// ConfbridgeStopRecord stops recording a Confbridge conference.
func (c *Conn) ConfbridgeStopRecord(conference string) *Pending[ActionResult] {
	return c.SendAction("ConfbridgeStopRecord", Message{"conference": conference})
}

// MeetmeList requests a MeetMe conference's participant list (see
// ConfbridgeList's note on multi-message responses). An empty
// conference lists every conference's participants.
func (c *Conn) MeetmeList(conference string) *Pending[ActionResult] {
	fields := Message{}
	if conference != "" {
		fields["conference"] = conference
	}
	return c.SendAction("MeetmeList", fields)
}

// ModuleLoad loads, unloads, or reloads module depending on loadType
// ("load", "unload", "reload").
func (c *Conn) ModuleLoad(module, loadType string) *Pending[ActionResult] {
	return c.SendAction("ModuleLoad", Message{
		"module":   module,
		"loadtype": loadType,
	})
}

// Reload reloads an Asterisk module (or every module, if module is
// "").
func (c *Conn) Reload(module string) *Pending[ActionResult] {
	fields := Message{}
	if module != "" {
		fields["module"] = module
	}
	return c.SendAction("Reload", fields)
}

// UserEvent emits an arbitrary UserEvent, its extra headers becoming
// the event's own headers for listening applications.
func (c *Conn) UserEvent(name string, headers map[string]string) *Pending[ActionResult] {
	fields := Message{"userevent": name}
	for k, v := range headers {
		fields[k] = v
	}
	return c.SendAction("UserEvent", fields)
}

// DbGet retrieves a key from the Asterisk internal database.
func (c *Conn) DbGet(family, key string) *Pending[ActionResult] {
	return c.SendAction("DBGet", Message{"family": family, "key": key})
}

// DbPut stores a key in the Asterisk internal database.
func (c *Conn) DbPut(family, key, value string) *Pending[ActionResult] {
	return c.SendAction("DBPut", Message{"family": family, "key": key, "value": value})
}

// DbDel removes a key from the Asterisk internal database.
func (c *Conn) DbDel(family, key string) *Pending[ActionResult] {
	return c.SendAction("DBDel", Message{"family": family, "key": key})
}

// DbDelTree removes a whole family (or just the subtree under key, if
// key is not "") from the Asterisk internal database.
func (c *Conn) DbDelTree(family, key string) *Pending[ActionResult] {
	fields := Message{"family": family}
	if key != "" {
		fields["key"] = key
	}
	return c.SendAction("DBDelTree", fields)
}

// MessageSend sends an out-of-call text message (pjsip, sip, xmpp).
// body is base64-encoded when useBase64 is set, matching the
// Base64Body header Asterisk expects for payloads that cannot safely
// ride in a plain header value.
func (c *Conn) MessageSend(to, from, body string, useBase64 bool, vars map[string]string) *Pending[ActionResult] {
	fields := Message{"to": to, "from": from}
	if useBase64 {
		fields["base64body"] = base64.StdEncoding.EncodeToString([]byte(body))
	} else {
		fields["body"] = body
	}
	if len(vars) > 0 {
		fields["variable"] = joinVars(vars)
	}
	return c.SendAction("MessageSend", fields)
}

// GetVar reads a global variable, or a channel variable if channel is
// not "".
func (c *Conn) GetVar(name, channel string) *Pending[ActionResult] {
	fields := Message{"variable": name}
	if channel != "" {
		fields["channel"] = channel
	}
	return c.SendAction("GetVar", fields)
}

// SetVar sets a global variable, or a channel variable if channel is
// not "".
func (c *Conn) SetVar(name, value, channel string) *Pending[ActionResult] {
	fields := Message{"variable": name, "value": value}
	if channel != "" {
		fields["channel"] = channel
	}
	return c.SendAction("SetVar", fields)
}

// CreateConfig creates an empty configuration file on the server.
func (c *Conn) CreateConfig(filename string) *Pending[ActionResult] {
	return c.SendAction("CreateConfig", Message{"filename": filename})
}

// GetConfig retrieves a configuration file's contents (optionally as
// JSON, in which case category is ignored), to be read off the
// response's Body/Headers by the caller.
func (c *Conn) GetConfig(filename, category string, asJSON bool) *Pending[ActionResult] {
	fields := Message{"filename": filename}
	action := "GetConfig"
	if asJSON {
		action = "GetConfigJSON"
	} else if category != "" {
		fields["category"] = category
	}
	return c.SendAction(action, fields)
}

// ConfigAction names one UpdateConfig sub-operation.
type ConfigAction string

// UpdateConfig sub-operations.
const (
	ConfNewCat    ConfigAction = "NewCat"
	ConfRenameCat ConfigAction = "RenameCat"
	ConfDelCat    ConfigAction = "DelCat"
	ConfEmptyCat  ConfigAction = "EmptyCat"
	ConfUpdate    ConfigAction = "Update"
	ConfDelete    ConfigAction = "Delete"
	ConfAppend    ConfigAction = "Append"
	ConfInsert    ConfigAction = "Insert"
)

// UpdateConfigEntry is one indexed Action-NNNNNN/Cat-NNNNNN/... group
// of an UpdateConfig action.
type UpdateConfigEntry struct {
	Action   ConfigAction
	Category string
	Variable string
	Value    string
	Match    string
	Line     string
}

// UpdateConfig applies a batch of configuration edits read from
// srcFile, writing the result to dstFile (reload, if not "", names
// the module to reload afterward).
func (c *Conn) UpdateConfig(srcFile, dstFile, reload string, entries []UpdateConfigEntry) *Pending[ActionResult] {
	fields := Message{
		"srcfilename": srcFile,
		"dstfilename": dstFile,
	}
	if reload != "" {
		fields["reload"] = reload
	}
	for i, e := range entries {
		id := fmt.Sprintf("%06d", i)
		fields["action-"+id] = string(e.Action)
		fields["cat-"+id] = e.Category
		fields["var-"+id] = e.Variable
		fields["value-"+id] = e.Value
		fields["match-"+id] = e.Match
		fields["line-"+id] = e.Line
	}
	return c.SendAction("UpdateConfig", fields)
}

func joinVars(vars map[string]string) string {
	parts := make([]string, 0, len(vars))
	for k, v := range vars {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}
