// Package id generates identifiers for machine runs and trace records.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator can generate IDs.
type Generator interface {
	// Generate an ID.
	Generate() string
}

// NewGenerator returns the default generator, whose IDs are globally unique
// across runs.
func NewGenerator() Generator {
	return &xidGenerator{}
}

// NewSequentialGenerator returns a generator whose IDs are small sequential
// integers. Deterministic output makes it the right choice in tests.
func NewSequentialGenerator() Generator {
	return &sequentialGenerator{}
}

type xidGenerator struct{}

func (g *xidGenerator) Generate() string {
	return xid.New().String()
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	id := atomic.AddUint64(&g.next, 1)
	return strconv.FormatUint(id, 10)
}
