// Package cache implements the address-range write-back cache that sits
// between filesystem backends and the raw medium.
//
// Entries are keyed by (address, size) byte ranges rather than fixed pages.
// A lookup hits only when the requested range lies entirely inside one
// existing entry. Ranges that overlap an entry without being contained in it
// become new, independent entries: nothing is split or merged, so two
// overlapping entries can diverge and a read served by the older one returns
// the older bytes. Callers that need coherent data must keep their I/O ranges
// aligned (the AFS engine does block-granular file I/O for this reason).
//
// There is no eviction. The entry list grows until MaxBytes is reached, after
// which Write reports failure and the funnel falls back to direct medium
// access.
package cache

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Medium is the raw storage the cache mediates.
type Medium interface {
	io.ReaderAt
	io.WriterAt
}

type Entry struct {
	Address    uint64
	Size       uint32
	Data       []byte
	Dirty      bool
	ReadCount  uint64
	WriteCount uint64
}

func (e *Entry) contains(addr uint64, size uint32) bool {
	return addr >= e.Address && addr+uint64(size) <= e.Address+uint64(e.Size)
}

type Stats struct {
	Hits         uint64 `json:"hits" yaml:"hits"`
	Misses       uint64 `json:"misses" yaml:"misses"`
	ReadSuccess  uint64 `json:"read_success" yaml:"read_success"`
	ReadFail     uint64 `json:"read_fail" yaml:"read_fail"`
	WriteSuccess uint64 `json:"write_success" yaml:"write_success"`
	WriteFail    uint64 `json:"write_fail" yaml:"write_fail"`
	WriteOld     uint64 `json:"write_old" yaml:"write_old"`
	WriteNew     uint64 `json:"write_new" yaml:"write_new"`
	BytesIn      uint64 `json:"bytes_in" yaml:"bytes_in"`
	BytesOut     uint64 `json:"bytes_out" yaml:"bytes_out"`
	ReadCalls    uint64 `json:"read_calls" yaml:"read_calls"`
	WriteCalls   uint64 `json:"write_calls" yaml:"write_calls"`
	MediumReads  uint64 `json:"medium_reads" yaml:"medium_reads"`
	MediumWrites uint64 `json:"medium_writes" yaml:"medium_writes"`
	Entries      int    `json:"entries" yaml:"entries"`
	CachedBytes  int64  `json:"cached_bytes" yaml:"cached_bytes"`
	DirtyEntries int    `json:"dirty_entries" yaml:"dirty_entries"`
}

type Options struct {
	// MaxBytes bounds the sum of entry sizes; 0 means unbounded.
	MaxBytes int64
}

type Cache struct {
	mu       sync.Mutex
	medium   Medium
	entries  []*Entry
	bytes    int64
	maxBytes int64
	stats    Stats
}

func New(medium Medium, opts Options) *Cache {
	return &Cache{
		medium:   medium,
		maxBytes: opts.MaxBytes,
	}
}

// IsCached returns the first entry, in insertion order, that fully contains
// [addr, addr+size).
func (c *Cache) IsCached(addr uint64, size uint32) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.lookup(addr, size)
	return e, e != nil
}

func (c *Cache) lookup(addr uint64, size uint32) *Entry {
	for _, e := range c.entries {
		if e.contains(addr, size) {
			c.stats.Hits++
			return e
		}
	}

	c.stats.Misses++
	return nil
}

// Read copies len(out) bytes at addr from a containing entry. It reports
// false on a miss; the caller is expected to read the medium and populate
// the cache with Write(addr, data, false).
func (c *Cache) Read(addr uint64, out []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.read(addr, out)
}

func (c *Cache) read(addr uint64, out []byte) bool {
	e := c.lookup(addr, uint32(len(out)))
	if e == nil {
		c.stats.ReadFail++
		return false
	}

	offset := addr - e.Address
	copy(out, e.Data[offset:offset+uint64(len(out))])
	e.ReadCount++

	c.stats.ReadSuccess++
	c.stats.BytesOut += uint64(len(out))
	return true
}

// Write stores data at addr. A containing entry is overwritten in place and
// its dirty flag set to dirty; otherwise a new entry sized exactly to data is
// appended. It reports false only when a new entry would exceed MaxBytes.
func (c *Cache) Write(addr uint64, data []byte, dirty bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.write(addr, data, dirty)
}

func (c *Cache) write(addr uint64, data []byte, dirty bool) bool {
	size := uint32(len(data))

	if e := c.lookup(addr, size); e != nil {
		offset := addr - e.Address
		copy(e.Data[offset:], data)
		e.Dirty = dirty
		e.WriteCount++

		c.stats.WriteOld++
		c.stats.WriteSuccess++
		c.stats.BytesIn += uint64(size)
		return true
	}

	if c.maxBytes > 0 && c.bytes+int64(size) > c.maxBytes {
		c.stats.WriteFail++
		return false
	}

	e := &Entry{
		Address: addr,
		Size:    size,
		Data:    make([]byte, size),
		Dirty:   dirty,
	}
	copy(e.Data, data)
	if dirty {
		e.WriteCount = 1
	}

	c.entries = append(c.entries, e)
	c.bytes += int64(size)

	c.stats.WriteNew++
	c.stats.WriteSuccess++
	c.stats.BytesIn += uint64(size)
	return true
}

// Flush writes a dirty entry's full range to the medium and clears its dirty
// flag. Clean entries are left untouched.
func (c *Cache) Flush(e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.flush(e)
}

func (c *Cache) flush(e *Entry) error {
	if !e.Dirty {
		return nil
	}

	c.stats.MediumWrites++
	if _, err := c.medium.WriteAt(e.Data, int64(e.Address)); err != nil {
		return fmt.Errorf("cache: flush %d bytes at %d: %w", e.Size, e.Address, err)
	}

	e.Dirty = false
	return nil
}

// FlushAll flushes every entry in insertion order. A failing entry stays
// dirty and the remaining entries are still attempted.
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, e := range c.entries {
		if err := c.flush(e); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// ReadAt serves p from the cache, or reads the medium and populates the
// cache with a clean entry on a miss.
func (c *Cache) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("cache: negative offset %d", off)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.ReadCalls++

	if c.read(uint64(off), p) {
		return len(p), nil
	}

	c.stats.MediumReads++
	n, err := c.medium.ReadAt(p, off)
	if err != nil {
		return n, err
	}

	c.write(uint64(off), p, false)

	return n, nil
}

// WriteAt stores p in the cache as dirty; the medium is written on flush.
// When the cache refuses the entry the write goes straight to the medium.
func (c *Cache) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("cache: negative offset %d", off)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.WriteCalls++

	if c.write(uint64(off), p, true) {
		return len(p), nil
	}

	c.stats.MediumWrites++
	return c.medium.WriteAt(p, off)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries)
	s.CachedBytes = c.bytes
	for _, e := range c.entries {
		if e.Dirty {
			s.DirtyEntries++
		}
	}

	return s
}

// Entries returns copies of the entry headers in list order, without data.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, Entry{
			Address:    e.Address,
			Size:       e.Size,
			Dirty:      e.Dirty,
			ReadCount:  e.ReadCount,
			WriteCount: e.WriteCount,
		})
	}

	return out
}
