// Package transport provides a ready-made TCP implementation of
// ami.Transport. Dialing, TLS, and reconnection policy are the only
// pieces of AMI connectivity the protocol package itself declines to
// own; this package fills in the default one.
package transport

import (
	"bufio"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/inconshreveable/log15"
)

// BytesReceiver is the inbound half of ami.Conn's contract: feed it
// every byte read off the wire, in order, from a single goroutine.
type BytesReceiver interface {
	BytesReceived(b []byte)
}

// TCP is a net.Conn-backed ami.Transport. Its read loop (Serve, run by
// the caller in a goroutine of its own) satisfies the AMI package's
// single-goroutine delivery contract; SendBytes and Close may be
// called from any goroutine.
type TCP struct {
	conn net.Conn
	log  log15.Logger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// Dial connects to addr (host:port) over plain TCP. cfg, if non-nil,
// upgrades the connection to TLS using tls.Dial instead.
func Dial(addr string, cfg *tls.Config, log log15.Logger) (*TCP, error) {
	var (
		conn net.Conn
		err  error
	)
	if cfg != nil {
		conn, err = tls.Dial("tcp", addr, cfg)
	} else {
		conn, err = net.DialTimeout("tcp", addr, 10*time.Second)
	}
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = log15.New()
		log.SetHandler(log15.DiscardHandler())
	}
	return &TCP{conn: conn, log: log}, nil
}

// SendBytes writes b to the connection in full.
func (t *TCP) SendBytes(b []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(b)
	return err
}

// Close closes the underlying connection. Safe to call more than
// once.
func (t *TCP) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// Serve runs the read loop, delivering every chunk read off the
// connection to recv.BytesReceived, until the connection is closed or
// a read error occurs. It blocks; run it in its own goroutine. There
// is no reconnection here — that policy belongs to the caller.
func (t *TCP) Serve(recv BytesReceiver) error {
	r := bufio.NewReader(t.conn)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			recv.BytesReceived(chunk)
		}
		if err != nil {
			t.log.Warn("transport: read loop ending", "error", err)
			return err
		}
	}
}
