package wire

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// Channel frames newline-delimited JSON over an input and output stream. A
// dedicated goroutine performs blocking reads of the input and hands parsed
// messages to a single-consumer queue (spec §4.4, §5's "dedicated OS
// thread" translated to a goroutine + channel). Outbound writes are
// serialized under a mutex so concurrent writers (the Handler Runtime, the
// Job Context's logger, request initiators) never interleave partial lines.
type Channel struct {
	w      io.Writer
	writeM sync.Mutex

	inbound chan Inbound
}

// NewChannel starts the reader goroutine over r and returns a Channel ready
// to both send on w and receive from Inbound().
func NewChannel(r io.Reader, w io.Writer) *Channel {
	c := &Channel{
		w:       w,
		inbound: make(chan Inbound, 64),
	}
	go c.readLoop(r)
	return c
}

func (c *Channel) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // blank lines dropped silently
		}

		var msg Inbound
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // malformed lines dropped silently
		}
		c.inbound <- msg
	}

	c.inbound <- Inbound{Internal: InternalEOF}
	close(c.inbound)
}

// Inbound returns the single-consumer queue of parsed inbound messages.
func (c *Channel) Inbound() <-chan Inbound {
	return c.inbound
}

// Send serializes v with compact separators and writes it as a single
// complete JSON line, atomic with respect to concurrent callers.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeM.Lock()
	defer c.writeM.Unlock()

	if _, err := c.w.Write(data); err != nil {
		return err
	}
	if f, ok := c.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// WaitForStart drains Inbound() until a "start" message arrives, discarding
// everything else including eof sentinels (spec §4.4's startup handshake).
// It returns ok=false if the channel closes without ever seeing a start
// message.
func WaitForStart(inbound <-chan Inbound) (Inbound, bool) {
	for msg := range inbound {
		if msg.Type == "start" {
			return msg, true
		}
	}
	return Inbound{}, false
}
