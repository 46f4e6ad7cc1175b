package ami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnLevelHandlerFiresWhenNoChannelClaimsEvent(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var got Message
	c.OnEvent("peerstatus", func(m Message) { got = m })

	feed(c, "Event: PeerStatus", "Peer: SIP/200", "PeerStatus: Reachable", "")

	require.NotNil(t, got)
	assert.Equal(t, "Reachable", got["peerstatus"])
}

func TestConnLevelHandlerSuppressedWhenChannelClaimsEvent(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var connFired bool
	c.OnEvent("newstate", func(m Message) { connFired = true })

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 4", "ChannelStateDesc: Ring")
	require.NotNil(t, ch)

	feed(c, "Event: Newstate", "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up", "")

	assert.False(t, connFired, "connection-level handler must not fire once the channel claimed the event")
}

func TestChannelCustomHandlerRunsAlongsideBuiltinTransition(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 4", "ChannelStateDesc: Ring")
	require.NotNil(t, ch)

	var customFired, builtinFired bool
	ch.Handlers.NewState = func(state int, desc string) { builtinFired = true }
	ch.OnEvent("newstate", func(m Message) { customFired = true })

	feed(c, "Event: Newstate", "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up", "")

	assert.True(t, builtinFired)
	assert.True(t, customFired)
}

func TestRenameRoutesByOldName(t *testing.T) {
	c, _ := newTestConn()
	feed(c, bannerPrefix+"1.1")

	var ch *Channel
	c.OnNewChannel(func(name string, got *Channel) { ch = got })
	newChannelEvent(c, "Channel: SIP/1-1", "ChannelState: 6", "ChannelStateDesc: Up")
	require.NotNil(t, ch)

	var renamedFrom, renamedTo string
	ch.Handlers.Renamed = func(oldName, newName string) {
		renamedFrom, renamedTo = oldName, newName
	}

	feed(c, "Event: Rename", "Channel: SIP/1-1<ZOMBIE>", "Oldname: SIP/1-1", "Newname: SIP/1-1<ZOMBIE>", "")

	assert.Equal(t, "SIP/1-1", renamedFrom)
	assert.Equal(t, "SIP/1-1<ZOMBIE>", renamedTo)
}
