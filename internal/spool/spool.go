// Package spool is the transmitter's local append-only buffer for batches
// that could not be delivered: a directory of "<unix-ms>-<seq>-<hash>.trn"
// files (hash is the hex xxhash of the batch body),
// bounded in total size with oldest-first eviction.
package spool

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultMaxBytes is the spool's total size cap.
	DefaultMaxBytes = 50 * 1024 * 1024

	contentEncodingIdentity byte = 0
	contentEncodingGzip     byte = 1

	headerSize = 4 + 1 + 2 // length(uint32) + contentEncoding(byte) + retryCount(uint16)
)

// Header is the small per-file header preceding the batch body.
type Header struct {
	Length          uint32
	ContentEncoding byte
	RetryCount      uint16
}

// Gzip reports whether the spooled batch body is gzip-compressed.
func (h Header) Gzip() bool { return h.ContentEncoding == contentEncodingGzip }

// Spool is a directory-backed, size-bounded batch buffer. Writes are
// serialized under a file-level mutex; reads for replay use a separate
// handle.
type Spool struct {
	dir      string
	maxBytes int64

	mu  sync.Mutex
	seq uint64
}

// Open ensures dir exists and returns a Spool bounded to maxBytes (0 means
// DefaultMaxBytes).
func Open(dir string, maxBytes int64) (*Spool, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: mkdir %s: %w", dir, err)
	}
	return &Spool{dir: dir, maxBytes: maxBytes}, nil
}

// Write appends body as a new spool file, gzip-flagged per encoding, then
// evicts the oldest files until the directory is back under the size cap.
func (s *Spool) Write(body []byte, gzipped bool, retryCount uint16) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	name := fmt.Sprintf("%d-%d-%x.trn", time.Now().UnixMilli(), s.seq, dedupeHash(body))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("spool: create %s: %w", path, err)
	}
	defer f.Close()

	enc := contentEncodingIdentity
	if gzipped {
		enc = contentEncodingGzip
	}
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(body)))
	hdr[4] = enc
	binary.LittleEndian.PutUint16(hdr[5:7], retryCount)

	if _, err := f.Write(hdr); err != nil {
		return "", fmt.Errorf("spool: write header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return "", fmt.Errorf("spool: write body: %w", err)
	}

	s.evictLocked()
	return name, nil
}

// dedupeHash gives spool filenames a content-derived suffix so two
// concurrent writers never collide on the same (ms, seq) pair across
// process restarts.
func dedupeHash(body []byte) uint64 {
	return xxhash.Sum64(body)
}

// List returns spool file names, oldest first.
func (s *Spool) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".trn" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // unix-ms prefix sorts lexicographically == chronologically
	return names, nil
}

// Read opens a fresh handle, reads the header and body, and returns them
// without disturbing any in-progress Write.
func (s *Spool) Read(name string) (Header, []byte, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return Header{}, nil, fmt.Errorf("spool: read header %s: %w", name, err)
	}
	h := Header{
		Length:          binary.LittleEndian.Uint32(hdr[0:4]),
		ContentEncoding: hdr[4],
		RetryCount:      binary.LittleEndian.Uint16(hdr[5:7]),
	}
	body := make([]byte, h.Length)
	if _, err := io.ReadFull(f, body); err != nil {
		return Header{}, nil, fmt.Errorf("spool: read body %s: %w", name, err)
	}
	return h, body, nil
}

// Delete removes a spool file after successful ack.
func (s *Spool) Delete(name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}

// Size returns the spool directory's current total size in bytes.
func (s *Spool) Size() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// evictLocked removes the oldest spool files until the directory is under
// the size cap. Callers must hold s.mu.
func (s *Spool) evictLocked() {
	names, err := s.List()
	if err != nil {
		return
	}
	var total int64
	sizes := make(map[string]int64, len(names))
	for _, n := range names {
		info, err := os.Stat(filepath.Join(s.dir, n))
		if err != nil {
			continue
		}
		sizes[n] = info.Size()
		total += info.Size()
	}
	for _, n := range names {
		if total <= s.maxBytes {
			break
		}
		if err := os.Remove(filepath.Join(s.dir, n)); err == nil {
			total -= sizes[n]
		}
	}
}
