// Suggestd - Adaptive Markov Suggestion Engine for LLM Chat
// Copyright 2026 M. Feltner (mfeltner)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltner/suggestd

// Package journal provides a durable feedback journal backed by BadgerDB.
//
// Every accepted feedback entry is persisted here before it is acknowledged,
// so a crash between buffering and the next retraining cycle loses nothing.
// Entries stay pending until a retraining cycle applies them and confirms
// the batch, at which point they are deleted.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mfeltner/suggestd/internal/feedback"
)

var (
	// ErrClosed is returned by operations on a closed journal.
	ErrClosed = errors.New("journal: closed")

	// ErrEmptyID is returned when a confirm is attempted with no entry ID.
	ErrEmptyID = errors.New("journal: empty entry id")
)

const pendingPrefix = "pending:"

// Record is one journaled feedback entry with its durable identity.
type Record struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Entry     feedback.Entry `json:"entry"`
}

// Config controls how the journal opens its BadgerDB store.
type Config struct {
	// Path is the directory holding the BadgerDB files.
	Path string

	// SyncWrites forces an fsync per write. Slower, but an acknowledged
	// entry survives power loss. Default: true.
	SyncWrites bool

	// InMemory runs the store without touching disk. Test use only.
	InMemory bool
}

// Journal is the BadgerDB-backed durable feedback store.
type Journal struct {
	db     *badger.DB
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open creates or reopens the journal at cfg.Path.
func Open(cfg Config, logger zerolog.Logger) (*Journal, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("journal: path required")
		}
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger.With().Str("component", "journal").Logger(),
	}
	j.logger.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("feedback journal opened")
	return j, nil
}

// Append persists one feedback entry and returns its journal ID. The entry
// is durable once Append returns.
func (j *Journal) Append(ctx context.Context, entry feedback.Entry) (string, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return "", ErrClosed
	}
	j.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec := Record{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Entry:     entry,
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	key := []byte(pendingPrefix + rec.ID)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return rec.ID, nil
}

// Pending returns every unconfirmed record, oldest first. Used on startup
// recovery and at the start of each retraining cycle.
func (j *Journal) Pending(ctx context.Context) ([]Record, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil, ErrClosed
	}
	j.mu.RUnlock()

	var records []Record
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Badger iterates in key order; UUIDs carry no time ordering, so sort
	// by creation time explicitly.
	sort.Slice(records, func(a, b int) bool {
		return records[a].CreatedAt.Before(records[b].CreatedAt)
	})
	return records, nil
}

// Confirm deletes the given entries after a retraining cycle has applied
// them. Missing IDs are ignored so a retried confirm is safe.
func (j *Journal) Confirm(ctx context.Context, ids []string) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	j.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if id == "" {
			return ErrEmptyID
		}
		if err := wb.Delete([]byte(pendingPrefix + id)); err != nil {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush confirms: %w", err)
	}
	return nil
}

// PendingCount returns the number of unconfirmed records.
func (j *Journal) PendingCount(ctx context.Context) (int, error) {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return 0, ErrClosed
	}
	j.mu.RUnlock()

	count := 0
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(pendingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close flushes and closes the underlying store.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	j.logger.Info().Msg("feedback journal closed")
	return nil
}
