// Package spool implements the per-slot on-disk spill file used when a
// writer slot's target table is concurrently being read by a producer
// (spec.md §4.3), e.g. reindex reading id2entry during a DN-format
// upgrade. Replayed after the reading producer finishes.
//
// No pack library fits this bespoke spill format (justified stdlib use,
// see DESIGN.md); it is grounded on the teacher's internal/storage/wal.go
// fixed-header record framing (length-prefixed records with a machine-word
// aligned header), generalized from WAL records to write-queue elements.
package spool

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/oba-ldap/obacore/internal/importer/queue"
)

// ErrCorrupt is returned when a spool file's record framing is invalid;
// per spec.md §4.3, failures reading a spool file are fatal to the job.
var ErrCorrupt = errors.New("spool: corrupted record")

const headerSize = 24 // action(4) + target-len(4) + key-len(8) + data-len(8), word-aligned

// Spool is a per-slot spill file.
type Spool struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// Create opens (creating) a spool file at path for writing.
func Create(path string) (*Spool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Spool{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the spool file's location.
func (s *Spool) Path() string { return s.path }

// Write appends el's action/target/key/data as a fixed-header record.
func (s *Spool) Write(el *queue.Element) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(el.Action))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(el.TargetSlot)))
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(el.Key)))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(len(el.Data)))
	if _, err := s.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := s.w.WriteString(el.TargetSlot); err != nil {
		return err
	}
	if _, err := s.w.Write(el.Key); err != nil {
		return err
	}
	if _, err := s.w.Write(el.Data); err != nil {
		return err
	}
	return nil
}

// Flush pushes buffered writes to the underlying file.
func (s *Spool) Flush() error {
	return s.w.Flush()
}

// Close flushes and closes the spool file.
func (s *Spool) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Remove deletes the spool file from disk (spec.md P6: no leak on abort).
func (s *Spool) Remove() error {
	s.f.Close()
	return os.Remove(s.path)
}

// Reader replays a spool file's records in write order (spec.md §4.3:
// rewind and re-materialize into writer-queue elements).
type Reader struct {
	r io.Reader
	f *os.File
}

// OpenReader opens path for replay.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{r: bufio.NewReader(f), f: f}, nil
}

// Close releases the reader's file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Next decodes the following record, or io.EOF when the spool is
// exhausted. Records whose declared lengths exceed buflimit are still
// read correctly (the bounded re-materialization buffer described in
// spec.md §4.3 is the writer's concern, not the reader's).
func (r *Reader) Next() (*queue.Element, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrCorrupt
		}
		return nil, err
	}
	action := binary.LittleEndian.Uint32(hdr[0:4])
	targetLen := binary.LittleEndian.Uint32(hdr[4:8])
	keyLen := binary.LittleEndian.Uint64(hdr[8:16])
	dataLen := binary.LittleEndian.Uint64(hdr[16:24])

	target := make([]byte, targetLen)
	if _, err := io.ReadFull(r.r, target); err != nil {
		return nil, ErrCorrupt
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r.r, key); err != nil {
		return nil, ErrCorrupt
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, ErrCorrupt
	}

	return queue.NewAsyncElement(queue.Action(action), string(target), key, data, int64(len(data))+int64(len(key))), nil
}
