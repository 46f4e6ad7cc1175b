package ami

import (
	"strings"
)

const (
	lineTerminator    = "\r\n"
	commandTerminator = "--END COMMAND--"
	bannerPrefix      = "Asterisk Call Manager/"

	// maxLineLength caps a single buffered line; anything longer is a
	// protocol fault rather than an unbounded allocation.
	maxLineLength = 64 * 1024
)

// Message is a case-insensitive key/value AMI message. Keys are always
// lowercased on parse; callers may look values up with any case when
// constructing one by hand, since SendAction lowercases headers too.
type Message map[string]string

// Get is a convenience accessor that lowercases key for lookup.
func (m Message) Get(key string) string {
	return m[strings.ToLower(key)]
}

// lineFramer splits an inbound byte stream on CRLF, delivering whole
// lines to onLine and buffering any partial trailing bytes.
type lineFramer struct {
	buf    []byte
	onLine func(line string) error
}

func (f *lineFramer) feed(b []byte) error {
	f.buf = append(f.buf, b...)

	for {
		idx := indexCRLF(f.buf)
		if idx < 0 {
			if len(f.buf) > maxLineLength {
				return &ProtocolError{Reason: "line too long"}
			}
			return nil
		}

		line := string(f.buf[:idx])
		f.buf = f.buf[idx+2:]

		if len(line) > maxLineLength {
			return &ProtocolError{Reason: "line too long"}
		}

		if err := f.onLine(line); err != nil {
			return err
		}
	}
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// messageAssembler accumulates consecutive non-empty lines into a
// Message, classifying it as banner / event / response / malformed,
// and dispatches it via onEvent / onResponse. It holds no channel- or
// action-correlation state of its own.
type messageAssembler struct {
	started       bool
	bufferedLines []string

	onBanner   func(banner string)
	onEvent    func(event string, m Message)
	onResponse func(response string, m Message, body *string) error
}

func (a *messageAssembler) line(line string) error {
	if !a.started {
		if !strings.HasPrefix(line, bannerPrefix) {
			return &ProtocolError{Reason: "unknown banner: " + line}
		}
		a.started = true
		if a.onBanner != nil {
			a.onBanner(line)
		}
		return nil
	}

	if line != "" {
		a.bufferedLines = append(a.bufferedLines, line)
		return nil
	}

	lines := a.bufferedLines
	a.bufferedLines = nil
	return a.dispatch(lines)
}

func (a *messageAssembler) dispatch(lines []string) error {
	m := Message{}
	var body *string

	for i, line := range lines {
		isLast := i == len(lines)-1
		if isLast && strings.HasSuffix(line, commandTerminator) {
			if strings.ToLower(m["response"]) != "follows" {
				return &ProtocolError{Reason: "body in non-Follows response"}
			}
			b := line[:len(line)-len(commandTerminator)]
			body = &b
			continue
		}

		key, value, ok := splitHeader(line)
		if !ok {
			// Not a recognized header and not a trailing body line:
			// ignore, mirroring the assembler's tolerance of stray
			// command output lines that don't carry a colon.
			continue
		}
		m[key] = value
	}

	if event, ok := popCI(m, "event"); ok {
		if a.onEvent != nil {
			a.onEvent(event, m)
		}
		return nil
	}

	if response, ok := popCI(m, "response"); ok {
		if a.onResponse != nil {
			return a.onResponse(response, m, body)
		}
		return nil
	}

	return &ProtocolError{Reason: "bad message"}
}

func splitHeader(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	value = strings.TrimLeft(line[idx+1:], " \t")
	return key, value, true
}

func popCI(m Message, key string) (string, bool) {
	v, ok := m[key]
	if ok {
		delete(m, key)
	}
	return v, ok
}

// serialize renders an outbound action/message as the wire frame:
// one "key: value" line per field, in unspecified order, terminated
// by a blank line. Key order is deliberately not stable across calls;
// tests must not assert on it (see spec §9).
func serialize(fields Message) string {
	var b strings.Builder
	for k, v := range fields {
		b.WriteString(strings.ToLower(k))
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString(lineTerminator)
	}
	b.WriteString(lineTerminator)
	return b.String()
}
