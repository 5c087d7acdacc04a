package console

import (
	"context"
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/uartlog/uartlog/pkg/tap"
)

// Session drives one console connection: it owns an Editor, feeds it
// bytes from the transport, and dispatches completed lines. A
// session's editor and history are private to its own task and never
// shared.
type Session struct {
	name     string
	conn     io.ReadWriter
	editor   *Editor
	commands *CommandSet

	// tap is the forwarding token currently held by this session,
	// or nil.
	tap *tap.Tap

	byteCh chan byte
	errCh  chan error
}

// NewSession creates a Session over a duplex byte transport.
func NewSession(name string, conn io.ReadWriter, commands *CommandSet) *Session {
	return &Session{
		name:     name,
		conn:     conn,
		editor:   NewEditor(),
		commands: commands,
		byteCh:   make(chan byte),
		errCh:    make(chan error, 1),
	}
}

// Name implements framework.Named.
func (s *Session) Name() string {
	return "console[" + s.name + "]"
}

// Printf writes formatted output to the session terminal.
func (s *Session) Printf(format string, args ...interface{}) {
	fmt.Fprintf(s.conn, format, args...)
}

// Write implements io.Writer so the session terminal can serve as the
// forwarding sink.
func (s *Session) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Run implements framework.Task. It returns when the transport fails
// (io.EOF for an orderly disconnect) or the context is canceled. A
// forwarding tap still held at exit is released.
func (s *Session) Run(ctx context.Context) error {
	defer s.releaseTap()
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.readLoop(subCtx)

	s.Printf(Prompt)
	s.editor.BeginLine()
	for {
		c, err := s.readByte(ctx)
		if err != nil {
			return err
		}
		res := s.editor.Feed(c)
		if len(res.Echo) > 0 {
			if _, err := s.conn.Write(res.Echo); err != nil {
				return err
			}
		}
		if !res.Submitted {
			continue
		}
		if res.Line != "" {
			glog.V(2).Infof("%s read: %q", s.Name(), res.Line)
			if status := s.commands.Dispatch(ctx, s, res.Line); status != 0 {
				s.Printf("command failed with status %d\r\n", status)
			}
		}
		s.Printf(Prompt)
		s.editor.BeginLine()
	}
}

// readByte delivers the next transport byte. Exposed to command
// handlers that take over the input stream (rtt).
func (s *Session) readByte(ctx context.Context) (byte, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case err := <-s.errCh:
		return 0, err
	case c := <-s.byteCh:
		return c, nil
	}
}

func (s *Session) readLoop(ctx context.Context) {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			n, err := s.conn.Read(buf)
			if err != nil {
				s.errCh <- err
				return
			}
			if n == 0 {
				continue
			}
			select {
			case s.byteCh <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Session) releaseTap() {
	if s.tap == nil {
		return
	}
	if err := s.commands.Deps.Broker.Stop(s.tap); err != nil {
		glog.Warningf("%s: releasing tap: %v", s.Name(), err)
	}
	s.tap = nil
}
