package storage

import (
	"os"
	"path/filepath"
	"syscall"
)

// File is an open log file on the storage volume.
type File interface {
	// Write appends bytes to the file.
	Write(p []byte) (int, error)
	// Size reports the current file size in bytes.
	Size() int64
	// FlushAndClose flushes pending writes and closes the file.
	FlushAndClose() error
}

// Filesystem abstracts the driver backing the log volume.
type Filesystem interface {
	// OpenOrCreateAppend opens the file positioned at end-of-file,
	// creating it when absent.
	OpenOrCreateAppend(path string) (File, error)
	// FreeSpace reports free bytes on the volume. It doubles as the
	// liveness probe: a volume that cannot answer is offline.
	FreeSpace() (uint64, error)
}

// DiskFS implements Filesystem on a host directory.
type DiskFS struct {
	Dir string
}

// NewDiskFS creates a DiskFS rooted at dir.
func NewDiskFS(dir string) *DiskFS {
	return &DiskFS{Dir: dir}
}

// OpenOrCreateAppend implements Filesystem.
func (fs *DiskFS) OpenOrCreateAppend(path string) (File, error) {
	f, err := os.OpenFile(filepath.Join(fs.Dir, path),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &diskFile{file: f, size: info.Size()}, nil
}

// FreeSpace implements Filesystem.
func (fs *DiskFS) FreeSpace() (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(fs.Dir, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

type diskFile struct {
	file *os.File
	size int64
}

func (f *diskFile) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	f.size += int64(n)
	return n, err
}

func (f *diskFile) Size() int64 {
	return f.size
}

func (f *diskFile) FlushAndClose() error {
	if err := f.file.Sync(); err != nil {
		f.file.Close()
		return err
	}
	return f.file.Close()
}
