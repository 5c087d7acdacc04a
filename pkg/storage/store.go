// Package storage manages the lifecycle of the log volume: mounting,
// unmounting and appending to the log file. All operations are
// serialized by a single lock shared with the file handle, so writers
// never interleave with mount state changes.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultSettleDelay is how long the bus stays up before the power
// rail follows on the very first mount attempt.
const DefaultSettleDelay = 100 * time.Millisecond

// Store owns the mount state and the open log file.
type Store struct {
	FS          Filesystem
	Board       Board
	Path        string
	SettleDelay time.Duration

	lock    sync.Mutex
	mounted bool
	settled bool
	powered bool
	file    File
	readyCh chan struct{}
}

// NewStore creates a Store over the given filesystem and board.
func NewStore(fs Filesystem, board Board, path string) *Store {
	return &Store{
		FS:          fs,
		Board:       board,
		Path:        path,
		SettleDelay: DefaultSettleDelay,
		readyCh:     make(chan struct{}),
	}
}

// Mount attempts to mount the card. Mounting an already mounted card
// succeeds immediately without touching the hardware. On success all
// tasks blocked in WaitReady are woken.
func (s *Store) Mount() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.mounted {
		glog.V(2).Info("mount requested, but card already mounted")
		return true
	}
	// The card must see the bus clocking before power is applied.
	// Later attempts already have the bus active, so the settle
	// delay is only paid once per process.
	s.Board.BusPower(true)
	if !s.settled {
		time.Sleep(s.SettleDelay)
		s.settled = true
	}
	s.Board.CardPower(true)
	s.powered = true
	free, err := s.FS.FreeSpace()
	if err != nil {
		glog.Warningf("free space probe failed, assuming card offline: %v", err)
		s.powerDown()
		return false
	}
	file, err := s.FS.OpenOrCreateAppend(s.Path)
	if err != nil {
		glog.Errorf("card online but log file unusable: %v", err)
		s.powerDown()
		return false
	}
	glog.Infof("card mounted, %d bytes free, log file %q at %d bytes",
		free, s.Path, file.Size())
	s.file = file
	s.mounted = true
	close(s.readyCh)
	return true
}

// Unmount flushes and closes the log file and powers the card down.
// There is no "became unmounted" notification; only mount readiness
// is observable.
func (s *Store) Unmount() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return
	}
	if err := s.file.FlushAndClose(); err != nil {
		glog.Errorf("closing log file: %v", err)
	}
	s.file = nil
	s.mounted = false
	s.readyCh = make(chan struct{})
	s.powerDown()
	glog.Info("card unmounted")
}

// powerDown reverses the power-up sequencing. Callers hold the lock.
func (s *Store) powerDown() {
	s.Board.CardPower(false)
	s.Board.BusPower(false)
	s.powered = false
}

// Mounted reports a point-in-time snapshot of the mount state.
func (s *Store) Mounted() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.mounted
}

// WaitReady blocks until the card is mounted or the context is
// canceled. The mount state is rechecked after every wakeup.
func (s *Store) WaitReady(ctx context.Context) error {
	for {
		s.lock.Lock()
		if s.mounted {
			s.lock.Unlock()
			return nil
		}
		ready := s.readyCh
		s.lock.Unlock()
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Write appends bytes to the log file. A failed write leaves the card
// mounted so the caller can retry; only ErrNotMounted means there is
// nothing to write to.
func (s *Store) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return 0, ErrNotMounted
	}
	n, err := s.file.Write(p)
	if err != nil {
		return n, &Fault{Op: "write", Err: err}
	}
	s.Board.ToggleActivity()
	return n, nil
}

// WriteTimestampMarker appends a human readable marker delimiting
// logging sessions within one file.
func (s *Store) WriteTimestampMarker() error {
	marker := fmt.Sprintf("\n-------Log Timestamp: %s -----------\n",
		time.Now().Format(time.RFC3339))
	n, err := s.Write([]byte(marker))
	if err != nil {
		return err
	}
	if n != len(marker) {
		return &Fault{Op: "write marker", Err: fmt.Errorf("short write: %d of %d", n, len(marker))}
	}
	return nil
}

// FileSize reports the current size of the log file, or 0 when
// unmounted.
func (s *Store) FileSize() int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.mounted {
		return 0
	}
	return s.file.Size()
}

// SetPower drives the card power rail directly. Refused while the
// card is mounted: unmount first.
func (s *Store) SetPower(on bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.mounted {
		return ErrMounted
	}
	if on == s.powered {
		return nil
	}
	if on {
		s.Board.BusPower(true)
		if !s.settled {
			time.Sleep(s.SettleDelay)
			s.settled = true
		}
		s.Board.CardPower(true)
	} else {
		s.powerDown()
	}
	s.powered = on
	return nil
}

// Powered reports whether the card power rail is up.
func (s *Store) Powered() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.powered
}
