// Package archive caches objective values per decision vector so that nodes
// sharing a tree level never pay twice for the same evaluation.
package archive

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Archive is a concurrency-safe fitness cache keyed by decision vector.
type Archive interface {
	Lookup(x []float64) ([]float64, bool)
	Store(x, objectives []float64)
	Len() int
}

type Stats struct {
	Hits         int `json:"hits"`
	Misses       int `json:"misses"`
	FilteredMiss int `json:"filtered_misses"`
	Entries      int `json:"entries"`
}

// Memory is the in-process archive. A bloom filter answers most misses
// without touching the entry map.
type Memory struct {
	mu      sync.RWMutex
	filter  *bloom.BloomFilter
	entries map[string][]float64
	stats   Stats
}

func NewMemory(expected uint) *Memory {
	if expected == 0 {
		expected = 1024
	}
	return &Memory{
		filter:  bloom.NewWithEstimates(expected, 0.01),
		entries: make(map[string][]float64),
	}
}

func (m *Memory) Lookup(x []float64) ([]float64, bool) {
	key := vectorKey(x)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.filter.Test(key) {
		m.stats.Misses++
		m.stats.FilteredMiss++
		return nil, false
	}
	objectives, ok := m.entries[string(key)]
	if !ok {
		m.stats.Misses++
		return nil, false
	}
	m.stats.Hits++
	return append([]float64(nil), objectives...), true
}

func (m *Memory) Store(x, objectives []float64) {
	key := vectorKey(x)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter.Add(key)
	m.entries[string(key)] = append([]float64(nil), objectives...)
	m.stats.Entries = len(m.entries)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Levels holds one archive per tree level.
type Levels struct {
	archives []*Memory
}

func NewLevels(levels int, expected uint) *Levels {
	archives := make([]*Memory, levels)
	for i := range archives {
		archives[i] = NewMemory(expected)
	}
	return &Levels{archives: archives}
}

func (l *Levels) Level(level int) Archive {
	if level < 0 || level >= len(l.archives) {
		return nil
	}
	return l.archives[level]
}

func (l *Levels) Stats() []Stats {
	out := make([]Stats, len(l.archives))
	for i, a := range l.archives {
		out[i] = a.Stats()
	}
	return out
}

func vectorKey(x []float64) []byte {
	key := make([]byte, 8*len(x))
	for i, v := range x {
		binary.LittleEndian.PutUint64(key[8*i:], math.Float64bits(v))
	}
	return key
}
