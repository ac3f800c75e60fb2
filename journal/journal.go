// Package journal persists accepted receipts in an append-only log. Frames
// are uvarint-length-prefixed RLP receipts behind a small magic header.
// Pruning requires a finalization record, or a checkpoint that itself only
// advances at finalization, so receipts only ever disappear after their
// slab survived its dispute window.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/atsproto/go-ats/inter"
	"github.com/atsproto/go-ats/slab"
)

var (
	ErrClosed    = errors.New("journal: closed")
	ErrCorrupted = errors.New("journal: corrupted log")
)

var journalMagic = []byte{'A', 'T', 'S', 'J', 0x01}

var log = logrus.WithField("module", "journal")

// Journal is a single-writer receipt log. All methods are safe for
// concurrent use.
type Journal struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	frames int
}

// Open opens or creates the receipt log at path. An existing log is scanned
// fully so corruption is detected at startup, not at first read.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	j := &Journal{path: path, f: f}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if _, err := f.Write(journalMagic); err != nil {
			_ = f.Close()
			return nil, err
		}
		return j, nil
	}

	receipts, tornAt, err := j.readAll()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if tornAt >= 0 {
		// A crash mid-append left a torn trailing frame. The receipt it
		// carried was never acknowledged, so dropping it is safe.
		if err := f.Truncate(tornAt); err != nil {
			_ = f.Close()
			return nil, err
		}
		log.WithFields(logrus.Fields{"path": path, "offset": tornAt}).Warn("dropped torn tail frame")
	}
	j.frames = len(receipts)
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "receipts": j.frames}).Debug("journal opened")
	return j, nil
}

// Append writes one receipt frame and syncs it to disk.
func (j *Journal) Append(r *inter.Receipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return ErrClosed
	}

	payload, err := rlp.EncodeToBytes(r)
	if err != nil {
		return err
	}
	var frame [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(frame[:], uint64(len(payload)))

	if _, err := j.f.Write(frame[:n]); err != nil {
		return err
	}
	if _, err := j.f.Write(payload); err != nil {
		return err
	}
	if err := j.f.Sync(); err != nil {
		return err
	}
	j.frames++
	return nil
}

// Receipts returns every receipt currently in the log, in append order.
func (j *Journal) Receipts() ([]inter.Receipt, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil, ErrClosed
	}
	receipts, _, err := j.readAll()
	return receipts, err
}

// readAll decodes the whole log. It returns the file offset of a torn
// trailing frame (an incomplete length or a payload cut short by a crash
// mid-append), or -1 when the log ends cleanly. A complete frame that does
// not decode is corruption, not tearing. Callers hold j.mu.
func (j *Journal) readAll() ([]inter.Receipt, int64, error) {
	raw, err := os.ReadFile(j.path)
	if err != nil {
		return nil, -1, err
	}
	if len(raw) < len(journalMagic) || string(raw[:len(journalMagic)]) != string(journalMagic) {
		return nil, -1, fmt.Errorf("%w: bad magic", ErrCorrupted)
	}
	offset := int64(len(journalMagic))
	raw = raw[len(journalMagic):]

	var receipts []inter.Receipt
	for len(raw) > 0 {
		size, n := binary.Uvarint(raw)
		if n == 0 {
			// The length itself is cut off; only a tail frame can end here.
			return receipts, offset, nil
		}
		if n < 0 {
			return nil, -1, fmt.Errorf("%w: bad frame length", ErrCorrupted)
		}
		if size > uint64(len(raw)-n) {
			return receipts, offset, nil
		}
		var r inter.Receipt
		if err := rlp.DecodeBytes(raw[n:n+int(size)], &r); err != nil {
			return nil, -1, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		receipts = append(receipts, r)
		offset += int64(n) + int64(size)
		raw = raw[n+int(size):]
	}
	return receipts, -1, nil
}

// Prune removes the receipts covered by a finalization record, rewriting
// the log atomically. Receipts outside [FirstStep, LastStep] are kept.
func (j *Journal) Prune(rec *slab.FinalizationRecord) (removed int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return 0, ErrClosed
	}

	receipts, _, err := j.readAll()
	if err != nil {
		return 0, err
	}
	kept := receipts[:0]
	for i := range receipts {
		step := receipts[i].Core.StepIndex
		if step >= rec.FirstStep && step <= rec.LastStep {
			removed++
			continue
		}
		kept = append(kept, receipts[i])
	}
	if removed == 0 {
		return 0, nil
	}
	if err := j.rewrite(kept); err != nil {
		return 0, err
	}

	log.WithFields(logrus.Fields{
		"slab":    rec.SlabID.String(),
		"removed": removed,
		"kept":    len(kept),
	}).Info("pruned finalized receipts")
	return removed, nil
}

// CompactBelow drops every receipt whose step index is below step,
// rewriting the log atomically. Recovery uses it when the checkpoint
// advanced past a prune that was lost to a crash: the journal head is then
// already covered by the checkpoint and must not be replayed again.
func (j *Journal) CompactBelow(step inter.StepIndex) (removed int, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return 0, ErrClosed
	}

	receipts, _, err := j.readAll()
	if err != nil {
		return 0, err
	}
	kept := receipts[:0]
	for i := range receipts {
		if receipts[i].Core.StepIndex < step {
			removed++
			continue
		}
		kept = append(kept, receipts[i])
	}
	if removed == 0 {
		return 0, nil
	}
	if err := j.rewrite(kept); err != nil {
		return 0, err
	}

	log.WithFields(logrus.Fields{
		"step":    uint64(step),
		"removed": removed,
		"kept":    len(kept),
	}).Info("compacted receipts behind checkpoint")
	return removed, nil
}

// rewrite replaces the log with the kept receipts via a temp file and an
// atomic rename, then reopens the file for appending. Callers hold j.mu.
func (j *Journal) rewrite(kept []inter.Receipt) error {
	tmp, err := os.CreateTemp(filepath.Dir(j.path), ".journal-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(journalMagic); err != nil {
		_ = tmp.Close()
		return err
	}
	for i := range kept {
		payload, err := rlp.EncodeToBytes(&kept[i])
		if err != nil {
			_ = tmp.Close()
			return err
		}
		var frame [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(frame[:], uint64(len(payload)))
		if _, err := tmp.Write(frame[:n]); err != nil {
			_ = tmp.Close()
			return err
		}
		if _, err := tmp.Write(payload); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	_ = j.f.Close()
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return err
	}
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		j.f = nil
		return err
	}
	j.f = f
	j.frames = len(kept)
	return nil
}

// Len returns the number of receipts in the log.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.frames
}

// Close closes the underlying file. Further calls fail with ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return ErrClosed
	}
	err := j.f.Close()
	j.f = nil
	return err
}
