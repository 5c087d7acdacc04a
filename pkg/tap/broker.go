// Package tap implements the live-tap delivery protocol: at most one
// console session at a time may receive the bytes flowing through the
// ingestion task. Delivery runs through a lossy bounded ring drained
// by a dedicated relay task, and exclusivity is a permit acquired by
// Start and consumed by Stop.
package tap

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

var (
	// ErrBusy indicates another session already holds the tap.
	ErrBusy = errors.New("forwarding already in use")
	// ErrNotOwner indicates the caller does not hold the tap.
	ErrNotOwner = errors.New("forwarding owned by another session")
)

// DefaultPollInterval bounds how long the relay waits for data before
// rechecking for a pending stop request.
const DefaultPollInterval = time.Second

// Tap is the ownership token returned by Start. Holding a Tap is the
// only right to receive forwarded bytes, and the only way to release
// it is Stop.
type Tap struct {
	broker *Broker
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
)

type relayCmd struct {
	kind cmdKind
	sink io.Writer
}

// Broker owns the forwarding state and runs the relay task.
//
// Lock order: the permit is always acquired before the enabled/owner
// lock. The enabled/owner pair has its own short-held lock so the
// producer's per-byte Publish never contends on the permit, which is
// held for the whole lifetime of a session's tap.
type Broker struct {
	PollInterval time.Duration

	ring   *Ring
	permit chan struct{} // capacity 1, a send acquires

	fwdLock sync.Mutex
	enabled bool
	owner   *Tap

	cmdCh chan relayCmd // one-slot command channel to the relay
	ackCh chan struct{} // relay confirms a stop
	done  chan struct{} // closed when the relay task exits
}

// NewBroker creates a Broker with a ring of the given capacity.
func NewBroker(ringSize int) *Broker {
	return &Broker{
		PollInterval: DefaultPollInterval,
		ring:         NewRing(ringSize),
		permit:       make(chan struct{}, 1),
		cmdCh:        make(chan relayCmd, 1),
		ackCh:        make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Publish offers one ingested byte to the tap. It never blocks: when
// forwarding is disabled the byte is dropped, and when the ring is
// full the oldest byte is overwritten.
func (b *Broker) Publish(c byte) {
	b.fwdLock.Lock()
	enabled := b.enabled
	b.fwdLock.Unlock()
	if enabled {
		b.ring.Push(c)
	}
}

// Start acquires the tap for a session and signals the relay to begin
// writing forwarded bytes to sink. If another session holds the tap,
// Start fails immediately with ErrBusy rather than queuing. Bytes
// still ringed from a previous owner's window are discarded: each
// window starts with fresh data only.
func (b *Broker) Start(sink io.Writer) (*Tap, error) {
	select {
	case b.permit <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	b.ring.Reset()
	tap := &Tap{broker: b}
	b.fwdLock.Lock()
	b.enabled = true
	b.owner = tap
	b.fwdLock.Unlock()
	b.cmdCh <- relayCmd{kind: cmdStart, sink: sink}
	glog.V(1).Info("forwarding started")
	return tap, nil
}

// Stop releases the tap. Stopping when nobody holds the tap succeeds
// as a no-op; stopping with a token that is not the current owner
// fails with ErrNotOwner and leaves the owner untouched. For the
// owner, Stop blocks until the relay acknowledges it has stopped.
func (b *Broker) Stop(tap *Tap) error {
	b.fwdLock.Lock()
	owner := b.owner
	b.fwdLock.Unlock()
	if owner == nil {
		return nil
	}
	if tap != owner {
		return ErrNotOwner
	}
	select {
	case b.cmdCh <- relayCmd{kind: cmdStop}:
	case <-b.done:
	}
	select {
	case <-b.ackCh:
	case <-b.done:
	}
	b.fwdLock.Lock()
	b.enabled = false
	b.owner = nil
	b.fwdLock.Unlock()
	<-b.permit
	glog.V(1).Info("forwarding stopped")
	return nil
}

// Enabled reports whether a session currently receives the tap.
func (b *Broker) Enabled() bool {
	b.fwdLock.Lock()
	defer b.fwdLock.Unlock()
	return b.enabled
}

// Name implements framework.Named.
func (b *Broker) Name() string {
	return "tap-relay"
}

// Run implements framework.Task: the relay loop. It idles until a
// start command arrives, then drains the ring into the owner's sink
// until a stop command arrives. The wait for data is bounded so a
// pending stop is noticed even when the line is silent.
func (b *Broker) Run(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-b.cmdCh:
			if cmd.kind != cmdStart {
				continue
			}
			if err := b.relay(ctx, cmd.sink); err != nil {
				return err
			}
		}
	}
}

func (b *Broker) relay(ctx context.Context, sink io.Writer) error {
	poll := b.PollInterval
	if poll == 0 {
		poll = DefaultPollInterval
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-b.cmdCh:
			if cmd.kind == cmdStop {
				b.ackCh <- struct{}{}
				return nil
			}
		default:
			c, ok := b.ring.PopWait(poll)
			if !ok {
				continue
			}
			if _, err := sink.Write([]byte{c}); err != nil {
				// The session behind the sink is gone. Keep
				// relaying; the tap is released when the
				// session's Stop runs.
				glog.V(1).Infof("tap sink write: %v", err)
			}
		}
	}
}
