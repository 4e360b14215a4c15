// Package state holds the small amount of application state that is not
// trip data, like the time of the last site update.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var appStateBucket = []byte("state")

var (
	KeyLastUpdate = []byte("last_update")
	KeyLastRender = []byte("last_render")
)

var ErrNoState = errors.New("no state")

type State struct {
	DB    *bbolt.DB
	rOnly bool
}

// Open opens the state file at path, creating it unless readOnly.
// A writable conn holds a file lock; other openers block until timeout.
func Open(path string, readOnly bool) (*State, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open state %s: %w", path, err)
	}
	return &State{DB: db, rOnly: readOnly}, nil
}

func (s *State) Close() error {
	return s.DB.Close()
}

func (s *State) storeKV(key []byte, data []byte) error {
	if key == nil {
		return fmt.Errorf("storeKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(appStateBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

func (s *State) readKV(key []byte) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{})
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(appStateBucket)
		if bucket == nil {
			return ErrNoState
		}
		// The value returned by Get is only valid in the scope of the transaction.
		got := bucket.Get(key)
		if got == nil {
			return ErrNoState
		}
		_, err := buf.Write(got)
		return err
	})
	return buf.Bytes(), err
}

// LastUpdate returns the stored time of the last completed update.
// The boolean is false when no update was recorded.
func (s *State) LastUpdate() (time.Time, bool, error) {
	return s.readTime(KeyLastUpdate)
}

// StoreLastUpdate records t as the last completed update.
func (s *State) StoreLastUpdate(t time.Time) error {
	err := s.writeTime(KeyLastUpdate, t)
	if err == nil {
		slog.Debug("Stored last update", "time", t)
	}
	return err
}

// LastRender returns the time the site was last rendered.
func (s *State) LastRender() (time.Time, bool, error) {
	return s.readTime(KeyLastRender)
}

func (s *State) StoreLastRender(t time.Time) error {
	return s.writeTime(KeyLastRender, t)
}

func (s *State) readTime(key []byte) (time.Time, bool, error) {
	b, err := s.readKV(key)
	if errors.Is(err, ErrNoState) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	var t time.Time
	if err := t.UnmarshalText(b); err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *State) writeTime(key []byte, t time.Time) error {
	b, err := t.MarshalText()
	if err != nil {
		return err
	}
	return s.storeKV(key, b)
}
