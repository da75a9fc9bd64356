package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DriftLog is an append-only JSON-lines journal of counter drift waiting to
// be reconciled. It lets pending reconciliation survive a restart.
type DriftLog struct {
	mu     sync.Mutex
	file   *os.File
	logger *zap.Logger
}

// NewDriftLog opens (or creates) the journal at p.
func NewDriftLog(p string, logger *zap.Logger) (*DriftLog, error) {
	if err := os.MkdirAll(filepath.Dir(p), 0770); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0660)
	if err != nil {
		return nil, err
	}

	return &DriftLog{file: file, logger: logger}, nil
}

// Append writes one entry at the end of the journal.
func (d *DriftLog) Append(e DriftEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.append(e)
}

func (d *DriftLog) append(e DriftEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if _, err := d.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	_, err = d.file.Write(append(b, '\n'))
	return err
}

// Pending returns every entry currently in the journal.
func (d *DriftLog) Pending() ([]DriftEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var entries []DriftEntry
	scanner := bufio.NewScanner(d.file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e DriftEntry
		if err := json.Unmarshal(line, &e); err != nil {
			d.logger.Warn("skipping malformed drift entry", zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading drift log: %w", err)
	}

	return entries, nil
}

// Replace rewrites the journal so it holds exactly entries.
func (d *DriftLog) Replace(entries []DriftEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.file.Truncate(0); err != nil {
		return err
	}
	for _, e := range entries {
		if err := d.append(e); err != nil {
			return err
		}
	}
	return d.file.Sync()
}

func (d *DriftLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.file.Close()
}
