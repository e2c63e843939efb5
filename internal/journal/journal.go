// Package journal provides an append-only on-disk audit journal for ledger
// events. Records carry CRC64-NVME checksums and closed journals can be
// compressed into a zstd archive.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/ledger"
)

// Config configures journal behavior.
type Config struct {
	// Dir is the directory for active journal files.
	Dir string

	// ArchiveDir is the directory for compressed archives.
	ArchiveDir string

	// RetentionDays is how long to keep archived files. Zero disables
	// archive cleanup.
	RetentionDays int
}

// DefaultConfig returns sensible defaults rooted under the user's home.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Dir:           filepath.Join(homeDir, ".orgledger", "journal"),
		ArchiveDir:    filepath.Join(homeDir, ".orgledger", "archive"),
		RetentionDays: 30,
	}
}

// Journal is an append-only event journal backed by a single file. It
// implements ledger.EventSink, so it can be wired directly into the
// services as their audit stream.
type Journal struct {
	mu   sync.Mutex
	cfg  *Config
	name string
	file *os.File
	path string

	nextSequence int64
}

// Open opens or creates the journal file for the given name, recovering
// the next sequence number from any existing records. Corrupt tails are
// truncated.
func Open(cfg *Config, name string) (*Journal, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		cfg:          cfg,
		name:         name,
		path:         filepath.Join(cfg.Dir, fmt.Sprintf("%s.journal", name)),
		nextSequence: 1,
	}

	if err := j.openOrCreate(); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	log.Info().
		Str("name", name).
		Str("path", j.path).
		Int64("next_sequence", j.nextSequence).
		Msg("Journal opened")

	return j, nil
}

func (j *Journal) openOrCreate() error {
	fileExists := false
	if _, err := os.Stat(j.path); err == nil {
		fileExists = true
	}

	var err error
	j.file, err = os.OpenFile(j.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if !fileExists {
		if err := j.writeHeader(); err != nil {
			j.file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
		return nil
	}

	if err := j.recover(); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to recover journal: %w", err)
	}

	return nil
}

// Publish appends an event record to the journal with fsync. Satisfies
// ledger.EventSink.
func (j *Journal) Publish(_ context.Context, event ledger.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}

	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	sequence := j.nextSequence

	record := buildRecord(sequence, time.Now().UnixMilli(), event.EventName(), payload)
	if _, err := j.file.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to fsync: %w", err)
	}

	j.nextSequence++

	log.Debug().
		Str("name", j.name).
		Int64("sequence", sequence).
		Str("event", event.EventName()).
		Msg("Event journaled")

	return nil
}

// Record is a decoded journal entry.
type Record struct {
	Sequence  int64
	Timestamp time.Time
	Event     string
	Payload   json.RawMessage
}

// Replay walks every record in the journal in append order, validating
// checksums, and passes each to fn. Replay stops at the first error
// returned by fn.
func (j *Journal) Replay(fn func(Record) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}

	return scanRecords(j.file, func(rec Record) error {
		return fn(rec)
	})
}

// Close closes the journal file. Further appends fail.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}

	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	j.file = nil

	log.Info().
		Str("name", j.name).
		Int64("records", j.nextSequence-1).
		Msg("Journal closed")

	return nil
}

// Archive compresses the journal file into the archive directory and
// removes the original. The journal must be closed first.
func (j *Journal) Archive(archiveDir string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		return fmt.Errorf("journal must be closed before archiving")
	}

	if archiveDir == "" {
		archiveDir = j.cfg.ArchiveDir
	}

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := archiveJournal(j.path, archiveDir, j.name); err != nil {
		return fmt.Errorf("failed to archive journal: %w", err)
	}

	log.Info().
		Str("name", j.name).
		Str("archive_dir", archiveDir).
		Msg("Journal archived")

	return nil
}
