// Package catz writes gzip compressed files under an exclusive lock,
// and reads them back.
package catz

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

// WriteMode decides what happens to existing content.
type WriteMode int

const (
	// Append adds a new gzip member after the existing ones.
	Append WriteMode = iota
	// Truncate replaces the file content.
	Truncate
)

const (
	filePerm = 0660
	dirPerm  = 0770
)

// GZWriter compresses into a file it holds locked until Close.
type GZWriter struct {
	f     *os.File
	zw    *gzip.Writer
	once  sync.Once
	close error
}

// CreateGZ opens path for writing, creating missing directories.
// It blocks until no other writer holds the file.
func CreateGZ(path string, mode WriteMode) (*GZWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, err
	}
	flag := os.O_WRONLY | os.O_CREATE
	if mode == Append {
		flag |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, filePerm)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	// Truncate only once the lock is held.
	if mode == Truncate {
		if err := f.Truncate(0); err != nil {
			f.Close()
			return nil, err
		}
	}
	zw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &GZWriter{f: f, zw: zw}, nil
}

func (w *GZWriter) Write(p []byte) (int, error) {
	return w.zw.Write(p)
}

func (w *GZWriter) Name() string {
	return w.f.Name()
}

// Close flushes the gzip member, syncs and unlocks the file.
// Later calls return the first call's result.
func (w *GZWriter) Close() error {
	w.once.Do(func() {
		err := w.zw.Close()
		if err == nil {
			err = w.f.Sync()
		}
		w.close = errors.Join(err, w.f.Close())
	})
	return w.close
}

// GZReader decompresses a file written by GZWriter,
// reading appended members as one stream.
type GZReader struct {
	f  *os.File
	zr *gzip.Reader
}

func OpenGZ(path string) (*GZReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &GZReader{f: f, zr: zr}, nil
}

func (r *GZReader) Read(p []byte) (int, error) {
	return r.zr.Read(p)
}

func (r *GZReader) Close() error {
	return errors.Join(r.zr.Close(), r.f.Close())
}
