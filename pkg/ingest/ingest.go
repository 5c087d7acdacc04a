// Package ingest bridges the logged serial line to storage: every
// byte read from the line is appended to the log file, and offered to
// the live tap afterwards. Durability always wins: the storage write
// is never skipped or delayed by a slow tap consumer.
package ingest

import (
	"context"
	"io"

	"github.com/golang/glog"

	"github.com/uartlog/uartlog/pkg/storage"
)

// Publisher receives a copy of every ingested byte. Publish must
// never block the ingestion loop.
type Publisher interface {
	Publish(b byte)
}

// Logger is the ingestion task for one logged line.
type Logger struct {
	Line  io.Reader
	Store *storage.Store
	Taps  []Publisher
}

// NewLogger creates the ingestion task over line.
func NewLogger(line io.Reader, store *storage.Store, taps ...Publisher) *Logger {
	return &Logger{Line: line, Store: store, Taps: taps}
}

// Name implements framework.Named.
func (l *Logger) Name() string {
	return "ingest"
}

// Run implements framework.Task. It reads the line one byte at a
// time, blocking in WaitReady while the card is unmounted. A single
// failed write is logged and retried with the next byte; only a dead
// transport ends the task.
func (l *Logger) Run(ctx context.Context) error {
	byteCh, errCh := make(chan byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, byteCh, errCh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case c := <-byteCh:
			if !l.Store.Mounted() {
				glog.V(1).Info("card not mounted, capture paused")
				if err := l.Store.WaitReady(ctx); err != nil {
					return err
				}
				glog.Info("card ready, capture resumed")
			}
			if _, err := l.Store.Write([]byte{c}); err != nil {
				glog.Errorf("log write failed: %v", err)
			}
			for _, t := range l.Taps {
				t.Publish(c)
			}
		}
	}
}

func (l *Logger) readLoop(ctx context.Context, byteCh chan byte, errCh chan error) {
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			n, err := l.Line.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			if n == 0 {
				continue
			}
			select {
			case byteCh <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}
}
