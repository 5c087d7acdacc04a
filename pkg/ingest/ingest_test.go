package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uartlog/uartlog/pkg/storage"
	"github.com/uartlog/uartlog/pkg/tap"
)

type testLine struct {
	byteCh chan byte
}

func newTestLine() *testLine {
	return &testLine{byteCh: make(chan byte, 64)}
}

func (l *testLine) Read(p []byte) (int, error) {
	b, ok := <-l.byteCh
	if !ok {
		return 0, context.Canceled
	}
	p[0] = b
	return 1, nil
}

func (l *testLine) inject(s string) {
	for i := 0; i < len(s); i++ {
		l.byteCh <- s[i]
	}
}

type memFile struct {
	lock sync.Mutex
	data []byte
}

func (f *memFile) Write(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.data = append(f.data, p...)
	return len(p), nil
}

func (f *memFile) Size() int64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return int64(len(f.data))
}

func (f *memFile) FlushAndClose() error { return nil }

func (f *memFile) content() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return string(f.data)
}

type memFS struct {
	file memFile
}

func (fs *memFS) OpenOrCreateAppend(path string) (storage.File, error) {
	return &fs.file, nil
}

func (fs *memFS) FreeSpace() (uint64, error) {
	return 1 << 20, nil
}

func waitForContent(t *testing.T, fs *memFS, want string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if fs.file.content() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, fs.file.content())
}

func startLogger(t *testing.T, line *testLine, store *storage.Store, taps ...Publisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		NewLogger(line, store, taps...).Run(ctx)
		close(doneCh)
	}()
	t.Cleanup(func() {
		cancel()
		<-doneCh
	})
}

func TestIngestWritesThrough(t *testing.T) {
	fs := &memFS{}
	store := storage.NewStore(fs, storage.NullBoard{}, "uart_log.txt")
	store.SettleDelay = 0
	require.True(t, store.Mount())
	line := newTestLine()
	startLogger(t, line, store)
	line.inject("log data\n")
	waitForContent(t, fs, "log data\n")
}

func TestIngestPausesUntilMounted(t *testing.T) {
	fs := &memFS{}
	store := storage.NewStore(fs, storage.NullBoard{}, "uart_log.txt")
	store.SettleDelay = 0
	line := newTestLine()
	startLogger(t, line, store)

	line.inject("x")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, "", fs.file.content())

	// Mounting wakes the paused ingestion task.
	require.True(t, store.Mount())
	waitForContent(t, fs, "x")
	line.inject("yz")
	waitForContent(t, fs, "xyz")
}

func TestIngestPublishesToTap(t *testing.T) {
	fs := &memFS{}
	store := storage.NewStore(fs, storage.NullBoard{}, "uart_log.txt")
	store.SettleDelay = 0
	require.True(t, store.Mount())

	broker := tap.NewBroker(64)
	broker.PollInterval = 10 * time.Millisecond
	brokerCtx, cancelBroker := context.WithCancel(context.Background())
	brokerDone := make(chan struct{})
	go func() {
		broker.Run(brokerCtx)
		close(brokerDone)
	}()
	defer func() {
		cancelBroker()
		<-brokerDone
	}()

	line := newTestLine()
	startLogger(t, line, store, broker)

	// Nothing is forwarded until a consumer starts a tap, but the
	// storage write always happens.
	line.inject("ab")
	waitForContent(t, fs, "ab")

	sinkCh := make(chan byte, 64)
	tok, err := broker.Start(writerFunc(func(p []byte) (int, error) {
		for _, b := range p {
			sinkCh <- b
		}
		return len(p), nil
	}))
	require.NoError(t, err)
	defer broker.Stop(tok)

	line.inject("cd")
	waitForContent(t, fs, "abcd")
	var got strings.Builder
	for got.Len() < 2 {
		select {
		case b := <-sinkCh:
			got.WriteByte(b)
		case <-time.After(time.Second):
			t.Fatal("tap bytes not delivered")
		}
	}
	require.Equal(t, "cd", got.String())
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
