package ami

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyCoreSystems/amigo/ami/agi"
)

func extractAsyncOrigID(t *testing.T, frame string) string {
	t.Helper()
	for _, line := range strings.Split(frame, "\r\n") {
		key, value, ok := splitHeader(line)
		if ok && key == "variable" && strings.HasPrefix(value, "AsyncOrigId=") {
			return strings.TrimPrefix(value, "AsyncOrigId=")
		}
	}
	t.Fatal("no AsyncOrigId variable field in frame")
	return ""
}

func TestOriginateAsyncAGIResolvesOnMatchingStart(t *testing.T) {
	c, tr := newTestConn()
	feed(c, bannerPrefix+"1.1")

	start := c.OriginateAsyncAGI("SIP/200", nil)

	require.NotEmpty(t, tr.sent)
	origID := extractAsyncOrigID(t, string(tr.sent[len(tr.sent)-1]))

	ids := pendingActionIDs(c)
	require.Len(t, ids, 1)
	feed(c, "Response: Success", "ActionID: "+ids[0], "")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/200-0001", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	feed(c, "Event: VarSet", "Channel: SIP/200-0001", "Variable: AsyncOrigId", "Value: "+origID, "")

	env := url.QueryEscape("agi_context: default\nagi_extension: 100\nagi_priority: 1\n")
	feed(c, "Event: AsyncAGI", "SubEvent: Start", "Channel: SIP/200-0001", "Env: "+env, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := start.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, ch, res.Channel)
	assert.Equal(t, "default", res.Env["agi_context"])
	assert.Equal(t, "100", res.Env["agi_extension"])
}

func TestAsyncAGIStartWithoutOrigIdFallsBackToChannelHandler(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/201-0001", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	var gotCtx, gotExt string
	var gotPriority int
	ch.Handlers.AsyncAGIStarted = func(dialplanCtx, ext string, priority int, env map[string]string) {
		gotCtx, gotExt, gotPriority = dialplanCtx, ext, priority
	}

	env := url.QueryEscape("agi_context: default\nagi_extension: 200\nagi_priority: 3\n")
	feed(c, "Event: AsyncAGI", "SubEvent: Start", "Channel: SIP/201-0001", "Env: "+env, "")

	assert.Equal(t, "default", gotCtx)
	assert.Equal(t, "200", gotExt)
	assert.Equal(t, 3, gotPriority)
}

func TestSendAGIResolvesOnMatchingExec(t *testing.T) {
	c, tr := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/202-0001", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	cmd := ch.SendAGI(agi.Answer)

	ids := pendingActionIDs(c)
	require.Len(t, ids, 1)
	frame := string(tr.sent[len(tr.sent)-1])
	assert.Equal(t, "ANSWER", headerValue(t, frame, "command"))
	commandID := headerValue(t, frame, "commandid")

	feed(c, "Response: Success", "ActionID: "+ids[0], "")

	result := url.QueryEscape("200 result=0\n")
	feed(c, "Event: AsyncAGI", "SubEvent: Exec", "Channel: SIP/202-0001", "CommandID: "+commandID, "Result: "+result, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := cmd.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Result)
}

func TestSendAGIRejectsOnNon200(t *testing.T) {
	c, tr := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/203-0001", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	cmd := ch.SendAGI(agi.StreamFile, "missing", "")
	ids := pendingActionIDs(c)
	require.Len(t, ids, 1)
	frame := string(tr.sent[len(tr.sent)-1])
	commandID := headerValue(t, frame, "commandid")

	feed(c, "Response: Success", "ActionID: "+ids[0], "")

	result := url.QueryEscape("510 Invalid or unknown command\n")
	feed(c, "Event: AsyncAGI", "SubEvent: Exec", "Channel: SIP/203-0001", "CommandID: "+commandID, "Result: "+result, "")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := cmd.Wait(ctx)
	require.Error(t, err)
	var aerr *AGIError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 510, aerr.Code)
}

func TestAsyncAGIExecForUnknownCommandIDIsNonFatal(t *testing.T) {
	c, tr := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/204-0001", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	result := url.QueryEscape("200 result=0\n")
	feed(c, "Event: AsyncAGI", "SubEvent: Exec", "Channel: SIP/204-0001", "CommandID: never-sent", "Result: "+result, "")

	assert.False(t, tr.closed)
}

func headerValue(t *testing.T, frame, key string) string {
	t.Helper()
	for _, line := range strings.Split(frame, "\r\n") {
		k, v, ok := splitHeader(line)
		if ok && k == key {
			return v
		}
	}
	t.Fatalf("no %s header in frame %q", key, frame)
	return ""
}
