package console

import (
	"context"
	"io"
	"strings"

	"github.com/golang/glog"

	"github.com/uartlog/uartlog/pkg/storage"
	"github.com/uartlog/uartlog/pkg/tap"
)

// maxArgs caps how many whitespace-separated tokens the dispatcher
// keeps, command name included. Extra tokens are dropped.
const maxArgs = 8

// Handler status codes. Advisory only: a failing handler gets a one
// line diagnostic, never a protocol-level error.
const (
	statusOK   = 0
	statusFail = 255
)

// rttExit ends the rtt passthrough (Ctrl-E).
const rttExit = 0x05

// Deps are the collaborators command handlers act on. Handlers only
// use their public contracts.
type Deps struct {
	Store  *storage.Store
	Broker *tap.Broker
	// LineTx is the transmit side of the logged line, used by rtt.
	LineTx io.Writer
}

// Command is one entry of the static dispatch table.
type Command struct {
	Name string
	Help string
	Run  func(ctx context.Context, s *Session, argv []string) int
}

// CommandSet is the immutable, ordered command table bound to its
// collaborators.
type CommandSet struct {
	Deps  Deps
	table []Command
}

// NewCommandSet builds the command table.
func NewCommandSet(deps Deps) *CommandSet {
	cs := &CommandSet{Deps: deps}
	cs.table = []Command{
		{"help", "Prints help for this commandline.\r\n" +
			"supply the name of a command after \"help\" for help with that command", cs.help},
		{"mount", "Attempts to mount the SD card", cs.mount},
		{"unmount", "Unmounts the SD card, flushing pending log data first", cs.unmount},
		{"sdstatus", "Prints the mount and power status of the SD card", cs.sdstatus},
		{"sdpwr", "Controls the SD card power rail. Use \"sdpwr on\" or \"sdpwr off\".\r\n" +
			"The card must be unmounted first", cs.sdpwr},
		{"write_sd", "Writes the given text to the SD card log file", cs.writeSD},
		{"filesize", "Prints the current size of the log file in bytes", cs.filesize},
		{"write_timestamp", "Writes a timestamp marker to the log file,\r\n" +
			"delimiting logging sessions", cs.writeTimestamp},
		{"connect_log", "Forwards live log data to this console.\r\n" +
			"Only one console may use the forwarding feature at a time", cs.connectLog},
		{"disconnect_log", "Stops forwarding live log data to this console", cs.disconnectLog},
		{"rtt", "Bidirectional passthrough to the logged line.\r\n" +
			"Press CTRL+E to exit", cs.rtt},
	}
	return cs
}

// Dispatch splits a completed line into tokens and runs the matching
// handler. An unknown command prints a warning and is not an error.
func (cs *CommandSet) Dispatch(ctx context.Context, s *Session, line string) int {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		return statusOK
	}
	if len(argv) > maxArgs {
		argv = argv[:maxArgs]
	}
	for _, cmd := range cs.table {
		if cmd.Name == argv[0] {
			return cmd.Run(ctx, s, argv)
		}
	}
	s.Printf("Warning: unknown command. Try \"help\". \r\n")
	return statusOK
}

func (cs *CommandSet) help(ctx context.Context, s *Session, argv []string) int {
	switch len(argv) {
	case 1:
		s.Printf("Avaliable Commands:\r\n")
		for _, cmd := range cs.table {
			s.Printf("%s\r\n", cmd.Name)
		}
		return statusOK
	case 2:
		for _, cmd := range cs.table {
			if cmd.Name == argv[1] {
				s.Printf("%s: %s\r\n", cmd.Name, cmd.Help)
				return statusOK
			}
		}
		s.Printf("Unknown command: %s\r\n", argv[1])
		return statusFail
	}
	s.Printf("Unsupported number of arguments\r\n")
	return statusFail
}

func (cs *CommandSet) mount(ctx context.Context, s *Session, argv []string) int {
	s.Printf("Attempting to mount sdcard...\r\n")
	if cs.Deps.Store.Mount() {
		s.Printf("Success\r\n")
	} else {
		s.Printf("Failed.\r\n")
	}
	return statusOK
}

func (cs *CommandSet) unmount(ctx context.Context, s *Session, argv []string) int {
	cs.Deps.Store.Unmount()
	s.Printf("SD card unmounted\r\n")
	return statusOK
}

func (cs *CommandSet) sdstatus(ctx context.Context, s *Session, argv []string) int {
	if cs.Deps.Store.Mounted() {
		s.Printf("SD card is mounted\r\n")
	} else {
		s.Printf("SD card is unmounted\r\n")
	}
	if cs.Deps.Store.Powered() {
		s.Printf("SD card power is on\r\n")
	} else {
		s.Printf("SD card power is off\r\n")
	}
	return statusOK
}

func (cs *CommandSet) sdpwr(ctx context.Context, s *Session, argv []string) int {
	if len(argv) != 2 {
		s.Printf("Unsupported number of arguments\r\n")
		return statusFail
	}
	var on bool
	switch argv[1] {
	case "on":
		on = true
	case "off":
		on = false
	default:
		s.Printf("Unknown argument %s. Try \"help sdpwr\"\r\n", argv[1])
		return statusFail
	}
	if err := cs.Deps.Store.SetPower(on); err != nil {
		s.Printf("Cannot change SD card power: %v\r\n", err)
		return statusFail
	}
	s.Printf("SD card power switched %s\r\n", argv[1])
	return statusOK
}

func (cs *CommandSet) writeSD(ctx context.Context, s *Session, argv []string) int {
	if len(argv) < 2 {
		s.Printf("Unsupported number of arguments\r\n")
		return statusFail
	}
	text := strings.Join(argv[1:], " ") + "\n"
	if _, err := cs.Deps.Store.Write([]byte(text)); err != nil {
		s.Printf("Write failed: %v\r\n", err)
		return statusFail
	}
	return statusOK
}

func (cs *CommandSet) filesize(ctx context.Context, s *Session, argv []string) int {
	if !cs.Deps.Store.Mounted() {
		s.Printf("SD card is not mounted\r\n")
		return statusFail
	}
	s.Printf("%d bytes\r\n", cs.Deps.Store.FileSize())
	return statusOK
}

func (cs *CommandSet) writeTimestamp(ctx context.Context, s *Session, argv []string) int {
	if err := cs.Deps.Store.WriteTimestampMarker(); err != nil {
		s.Printf("Write failed: %v\r\n", err)
		return statusFail
	}
	return statusOK
}

func (cs *CommandSet) connectLog(ctx context.Context, s *Session, argv []string) int {
	if s.tap != nil {
		s.Printf("Log forwarding is already active on this console\r\n")
		return statusFail
	}
	t, err := cs.Deps.Broker.Start(s)
	if err != nil {
		s.Printf("Could not enable log forwarding: %v\r\n", err)
		return statusFail
	}
	s.tap = t
	s.Printf("Log forwarding enabled\r\n")
	return statusOK
}

func (cs *CommandSet) disconnectLog(ctx context.Context, s *Session, argv []string) int {
	if err := cs.Deps.Broker.Stop(s.tap); err != nil {
		s.Printf("Could not disable log forwarding: %v\r\n", err)
		return statusFail
	}
	s.tap = nil
	s.Printf("Log forwarding disabled\r\n")
	return statusOK
}

// rtt relays this console to the logged line in both directions:
// console keystrokes go out on the line's transmit side, and the live
// tap streams line data back. CTRL+E returns to the prompt.
func (cs *CommandSet) rtt(ctx context.Context, s *Session, argv []string) int {
	if cs.Deps.LineTx == nil {
		s.Printf("The logged line has no transmit side\r\n")
		return statusFail
	}
	if s.tap != nil {
		s.Printf("Disable log forwarding before using rtt\r\n")
		return statusFail
	}
	t, err := cs.Deps.Broker.Start(s)
	if err != nil {
		s.Printf("Could not enable log forwarding: %v\r\n", err)
		return statusFail
	}
	s.Printf("Entering passthrough, press CTRL+E to exit\r\n")
	status := statusOK
	for {
		c, err := s.readByte(ctx)
		if err != nil {
			glog.Warningf("rtt console read: %v", err)
			status = statusFail
			break
		}
		if c == rttExit {
			break
		}
		if _, err := cs.Deps.LineTx.Write([]byte{c}); err != nil {
			s.Printf("Line write failed: %v\r\n", err)
			status = statusFail
			break
		}
	}
	if err := cs.Deps.Broker.Stop(t); err != nil {
		glog.Errorf("rtt: releasing tap: %v", err)
		status = statusFail
	}
	s.Printf("\r\nLeaving passthrough\r\n")
	return status
}
