package tap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanSink struct {
	byteCh chan byte
}

func newChanSink() *chanSink {
	return &chanSink{byteCh: make(chan byte, 256)}
}

func (s *chanSink) Write(p []byte) (int, error) {
	for _, b := range p {
		s.byteCh <- b
	}
	return len(p), nil
}

func (s *chanSink) expect(t *testing.T, want string) {
	t.Helper()
	for i := 0; i < len(want); i++ {
		select {
		case b := <-s.byteCh:
			require.Equal(t, want[i], b)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for byte %d of %q", i, want)
		}
	}
}

func newTestBroker(t *testing.T) *Broker {
	b := NewBroker(64)
	b.PollInterval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(doneCh)
	}()
	t.Cleanup(func() {
		cancel()
		<-doneCh
	})
	return b
}

func TestStartIsExclusive(t *testing.T) {
	b := newTestBroker(t)
	tap, err := b.Start(newChanSink())
	require.NoError(t, err)
	// A second start fails immediately instead of queuing.
	_, err = b.Start(newChanSink())
	require.Equal(t, ErrBusy, err)
	require.NoError(t, b.Stop(tap))
}

func TestStopWithoutOwnerIsNoOp(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.Stop(nil))
}

func TestStopByNonOwnerRejected(t *testing.T) {
	b := newTestBroker(t)
	sink := newChanSink()
	tap, err := b.Start(sink)
	require.NoError(t, err)

	require.Equal(t, ErrNotOwner, b.Stop(nil))
	require.Equal(t, ErrNotOwner, b.Stop(&Tap{broker: b}))
	// The owner's forwarding is untouched.
	require.True(t, b.Enabled())
	b.Publish('a')
	sink.expect(t, "a")

	require.NoError(t, b.Stop(tap))
}

func TestDelivery(t *testing.T) {
	b := newTestBroker(t)
	sink := newChanSink()
	tap, err := b.Start(sink)
	require.NoError(t, err)
	for _, c := range []byte("hello") {
		b.Publish(c)
	}
	sink.expect(t, "hello")
	require.NoError(t, b.Stop(tap))
}

func TestPublishDisabledDropsBytes(t *testing.T) {
	b := newTestBroker(t)
	b.Publish('x')
	require.Equal(t, 0, b.ring.Len())
	require.False(t, b.Enabled())
}

func TestStopHandshakeReleasesPermit(t *testing.T) {
	b := newTestBroker(t)
	sink := newChanSink()
	tap, err := b.Start(sink)
	require.NoError(t, err)
	require.NoError(t, b.Stop(tap))
	require.False(t, b.Enabled())

	// The permit is free again.
	sink2 := newChanSink()
	tap2, err := b.Start(sink2)
	require.NoError(t, err)
	b.Publish('b')
	sink2.expect(t, "b")
	require.NoError(t, b.Stop(tap2))
}

func TestStartDiscardsStaleBytes(t *testing.T) {
	b := newTestBroker(t)

	// Bytes left ringed from an earlier owner's window.
	b.ring.Push('x')
	b.ring.Push('y')

	sink := newChanSink()
	tap, err := b.Start(sink)
	require.NoError(t, err)
	// The first byte the new owner sees is fresh data.
	b.Publish('z')
	sink.expect(t, "z")
	require.NoError(t, b.Stop(tap))
}

func TestStopNoticedWithoutNewData(t *testing.T) {
	b := newTestBroker(t)
	tap, err := b.Start(newChanSink())
	require.NoError(t, err)
	// No data flowing; Stop must still return within the relay's
	// poll interval.
	doneCh := make(chan error, 1)
	go func() {
		doneCh <- b.Stop(tap)
	}()
	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop not acknowledged")
	}
}
