package ami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChannelEvent(c *Conn, fields ...string) {
	lines := append([]string{"Event: Newchannel"}, fields...)
	feed(c, lines...)
	feed(c, "")
}

func TestNewchannelRegistersChannelWithModernState(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var got *Channel
	c.OnNewChannel(func(name string, ch *Channel) { got = ch })

	newChannelEvent(c,
		"Channel: SIP/200-0001",
		"ChannelState: 4",
		"ChannelStateDesc: Ring",
		"CallerIDNum: 200",
		"CallerIDName: Alice",
	)

	require.NotNil(t, got)
	assert.Equal(t, "SIP/200-0001", got.Name())
	assert.Equal(t, StateRing, got.State)
	assert.Equal(t, "200", got.CallerID.Number)
	assert.Equal(t, "Alice", got.CallerID.Name)

	ch, ok := c.Channel("SIP/200-0001")
	require.True(t, ok)
	assert.Same(t, got, ch)
}

func TestNewchannelSynthesizesStateFromLegacyDialect(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var got *Channel
	c.OnNewChannel(func(name string, ch *Channel) { got = ch })

	newChannelEvent(c, "Channel: SIP/200-0002", "State: Ringing", "CallerID: 200")

	require.NotNil(t, got)
	assert.Equal(t, StateRinging, got.State)
	assert.Equal(t, "200", got.CallerID.Number)
}

func TestNewstateUpdatesChannelAndFiresHandler(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 4", "ChannelStateDesc: Ring")
	require.NotNil(t, ch)

	var newState int
	var newDesc string
	ch.Handlers.NewState = func(state int, desc string) {
		newState = state
		newDesc = desc
	}

	feed(c,
		"Event: Newstate",
		"Channel: SIP/1-1",
		"ChannelState: 6",
		"ChannelStateDesc: Up",
		"",
	)

	assert.Equal(t, StateUp, ch.State)
	assert.Equal(t, StateUp, newState)
	assert.Equal(t, "Up", newDesc)
}

func TestVarsetRecordsVariable(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	feed(c, "Event: VarSet", "Channel: SIP/1-1", "Variable: AsyncOrigId", "Value: abc", "")
	assert.Equal(t, "abc", ch.Variables["AsyncOrigId"])
}

func TestRenameMovesChannelInRegistry(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	feed(c, "Event: Rename", "Channel: SIP/1-1", "Oldname: SIP/1-1", "Newname: SIP/1-1<ZOMBIE>", "")

	assert.Equal(t, "SIP/1-1<ZOMBIE>", ch.Name())
	_, stillOld := c.Channel("SIP/1-1")
	assert.False(t, stillOld)
	_, nowNew := c.Channel("SIP/1-1<ZOMBIE>")
	assert.True(t, nowNew)
}

func TestLinkUnlinkPair(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	channels := map[string]*Channel{}
	c.OnNewChannel(func(name string, ch *Channel) { channels[name] = ch })

	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	newChannelEvent(c, "Channel: SIP/2-1", "ChannelState: 6", "ChannelStateDesc: Up")

	a, b := channels["SIP/1-1"], channels["SIP/2-1"]
	require.NotNil(t, a)
	require.NotNil(t, b)

	var aLinked, bLinked *Channel
	a.Handlers.Linked = func(peer *Channel) { aLinked = peer }
	b.Handlers.Linked = func(peer *Channel) { bLinked = peer }

	feed(c, "Event: Link", "Channel1: SIP/1-1", "Channel2: SIP/2-1", "")

	assert.Same(t, b, aLinked)
	assert.Same(t, a, bLinked)
	assert.Same(t, b, a.LinkedTo())
	assert.Same(t, a, b.LinkedTo())

	var aUnlinked, bUnlinked *Channel
	a.Handlers.Unlinked = func(peer *Channel) { aUnlinked = peer }
	b.Handlers.Unlinked = func(peer *Channel) { bUnlinked = peer }

	feed(c, "Event: Unlink", "Channel1: SIP/1-1", "Channel2: SIP/2-1", "")

	assert.Same(t, b, aUnlinked)
	assert.Same(t, a, bUnlinked)
	assert.Nil(t, a.LinkedTo())
	assert.Nil(t, b.LinkedTo())
}

func TestHangupClearsStaleLinkOnPeer(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	channels := map[string]*Channel{}
	c.OnNewChannel(func(name string, ch *Channel) { channels[name] = ch })

	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	newChannelEvent(c, "Channel: SIP/2-1", "ChannelState: 6", "ChannelStateDesc: Up")
	feed(c, "Event: Link", "Channel1: SIP/1-1", "Channel2: SIP/2-1", "")

	feed(c, "Event: Hangup", "Channel: SIP/1-1", "Cause: 16", "Cause-txt: Normal Clearing", "")

	b := channels["SIP/2-1"]
	assert.Nil(t, b.LinkedTo())
	_, stillThere := c.Channel("SIP/1-1")
	assert.False(t, stillThere)
}

func TestNewextenAppendsToLog(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	feed(c,
		"Event: Newexten",
		"Channel: SIP/1-1",
		"Context: default",
		"Extension: 100",
		"Priority: 1",
		"Application: Dial",
		"AppData: SIP/200",
		"",
	)

	require.Len(t, ch.Extensions, 1)
	assert.Equal(t, "default", ch.Extensions[0].Context)
	assert.Equal(t, 1, ch.Extensions[0].Priority)
	assert.Equal(t, "Dial", ch.Extensions[0].Application)
}

func TestChannelSendActionStampsChannelField(t *testing.T) {
	c, tr := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	ch.SendAction("Hangup", Message{})

	require.NotEmpty(t, tr.sent)
	last := string(tr.sent[len(tr.sent)-1])
	assert.Contains(t, last, "channel: SIP/1-1")
}
