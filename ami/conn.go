package ami

import (
	"sync"

	"github.com/inconshreveable/log15"
)

// Transport is the opaque full-duplex byte stream a Conn is built on.
// Conn never dials or reconnects; see the transport package for a
// ready-made TCP implementation.
type Transport interface {
	SendBytes(b []byte) error
	Close() error
}

// BannerFunc is called once, when the connection's banner line is
// received.
type BannerFunc func(banner string)

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithLogger sets the connection's logging sink (spec §1's
// warn/error callback, realized as a log15.Logger). Defaults to a
// discarding logger.
func WithLogger(log log15.Logger) Option {
	return func(c *Conn) { c.Log = log }
}

// WithNonDropErrors overrides the default non-drop error kind set
// (spec §7); errors of any other kind close the connection.
func WithNonDropErrors(kinds ...ErrorKind) Option {
	return func(c *Conn) { c.NonDropErrors = kinds }
}

// WithBanner registers a callback for the connection's banner line.
func WithBanner(f BannerFunc) Option {
	return func(c *Conn) { c.onBanner = f }
}

// Conn is a single AMI connection: the line framer, message
// assembler, action correlator, event dispatcher, and channel
// registry wired together, as specified by the dependency order in
// spec §2. No two event or response callbacks ever execute
// concurrently for a given Conn (spec §5); BytesReceived must be
// called from a single goroutine (the caller's transport read loop).
type Conn struct {
	mu sync.Mutex

	transport Transport
	framer    *lineFramer
	assembler *messageAssembler

	pendingActions       map[string]*Pending[ActionResult]
	pendingOriginations  map[string]*Pending[OriginationResult]
	pendingAsyncOrigins  map[string]*Pending[AsyncAGIStart]
	registry             *registry

	eventHandlers  map[string]EventHandler
	newChannelFunc NewChannelFunc
	onBanner       BannerFunc

	Log           log15.Logger
	NonDropErrors []ErrorKind

	closed bool
}

// NewConn constructs a Conn over the given transport. NewConn itself
// sends nothing; inbound bytes, starting with the banner, reach the
// Conn only through the caller's calls to BytesReceived. Actions are
// written as soon as they are sent, whether or not the banner has
// arrived.
func NewConn(tr Transport, opts ...Option) *Conn {
	c := &Conn{
		transport:           tr,
		pendingActions:      map[string]*Pending[ActionResult]{},
		pendingOriginations: map[string]*Pending[OriginationResult]{},
		pendingAsyncOrigins: map[string]*Pending[AsyncAGIStart]{},
		registry:            newRegistry(),
		eventHandlers:       map[string]EventHandler{},
		Log:                 log15.New(),
		NonDropErrors:       DefaultNonDropErrors(),
	}
	c.Log.SetHandler(log15.DiscardHandler())

	c.assembler = &messageAssembler{
		onBanner: func(banner string) {
			if c.onBanner != nil {
				c.onBanner(banner)
			}
		},
		onEvent:    c.handleEvent,
		onResponse: c.handleResponse,
	}
	c.framer = &lineFramer{onLine: c.assembler.line}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BytesReceived feeds inbound bytes from the transport into the
// framer/assembler/dispatcher pipeline. It must be called from a
// single goroutine per spec §5; a message is always fully parsed and
// dispatched before the next one is considered.
func (c *Conn) BytesReceived(b []byte) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	if err := c.framer.feed(b); err != nil {
		c.handleFault(err)
	}
}

// handleFault implements the error-classification policy of spec §7:
// non-drop kinds are logged and ignored; everything else closes the
// connection.
func (c *Conn) handleFault(err error) {
	if isNonDrop(c.NonDropErrors, err) {
		c.Log.Warn("ami: ignoring non-fatal error", "error", err)
		return
	}
	c.Log.Error("ami: protocol fault, closing connection", "error", err)
	c.Close()
}

func (c *Conn) write(frame string) error {
	return c.transport.SendBytes([]byte(frame))
}

// Close closes the underlying transport and rejects every
// outstanding Pending with Disconnected, per spec §5's cancellation
// contract. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.transport.Close()
	c.rejectAllPending(err)
	return err
}

// Channel returns non-owning access to a currently registered
// channel by name.
func (c *Conn) Channel(name string) (*Channel, bool) {
	return c.registry.get(name)
}

// NumChannels returns the number of channels currently tracked by the
// registry.
func (c *Conn) NumChannels() int {
	return c.registry.size()
}
