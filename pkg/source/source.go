// Package source defines the narrow interfaces through which the job
// engine reaches the outside world: row-range access to spreadsheet-like
// sources and the pluggable per-row enrichment processors. The engine
// never interprets row contents itself.
package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/rowforge/rowforge/pkg/job"
)

// Row is one spreadsheet row handed to a processor. Index is the
// job-relative offset (0-based); Values maps header names to cell
// contents.
type Row struct {
	Index  int
	Values map[string]string
}

// EnrichedFields maps output column names to the values written back to
// the source after a row is processed.
type EnrichedFields map[string]string

// RowProcessor turns one row plus case metadata into enriched fields or
// an error. Implementations must be idempotent for the same row: rows
// may be re-processed after a crash, since delivery is at-least-once.
//
// Return a *job.RowError to classify a failure explicitly; plain errors
// are treated as transient.
type RowProcessor interface {
	Process(ctx context.Context, row Row, caseType job.CaseType) (EnrichedFields, error)
}

// ProcessorFunc adapts a function to the RowProcessor interface.
type ProcessorFunc func(ctx context.Context, row Row, caseType job.CaseType) (EnrichedFields, error)

func (f ProcessorFunc) Process(ctx context.Context, row Row, caseType job.CaseType) (EnrichedFields, error) {
	return f(ctx, row, caseType)
}

// Accessor reads a row range of an external source and writes enriched
// fields back. Failure modes are surfaced to the worker as row errors.
type Accessor interface {
	// ReadRow returns the row at the job-relative index within the
	// descriptor's range.
	ReadRow(ctx context.Context, src job.SourceDescriptor, index int) (Row, error)

	// WriteRow persists enriched fields for the row. Writes must be
	// idempotent: enriching the same row twice yields the same cells.
	WriteRow(ctx context.Context, src job.SourceDescriptor, index int, fields EnrichedFields) error
}

// ProcessorFactory creates a processor for a case type.
type ProcessorFactory func() (RowProcessor, error)

var (
	processorMu sync.RWMutex
	processors  = make(map[job.CaseType]ProcessorFactory)
)

// RegisterProcessor installs an enrichment processor factory for a case
// type. Enrichment collaborators register themselves at import time, the
// same way store backends do.
func RegisterProcessor(c job.CaseType, factory ProcessorFactory) {
	processorMu.Lock()
	defer processorMu.Unlock()
	processors[c] = factory
}

// NewProcessor creates the registered processor for a case type.
func NewProcessor(c job.CaseType) (RowProcessor, error) {
	processorMu.RLock()
	factory, ok := processors[c]
	processorMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no row processor registered for case type %q", c)
	}
	return factory()
}

// Passthrough is a RowProcessor that enriches nothing. It stands in when
// no enrichment collaborator is linked into the binary, keeping the
// engine runnable for scheduling and dry-run purposes.
type Passthrough struct{}

func (Passthrough) Process(ctx context.Context, row Row, caseType job.CaseType) (EnrichedFields, error) {
	return nil, nil
}

// Dispatch routes each row to the processor registered for its case
// type, creating one processor per case lazily and reusing it. Case
// types with no registration fall back to Passthrough.
type Dispatch struct {
	mu    sync.Mutex
	cache map[job.CaseType]RowProcessor
}

// NewDispatch creates an empty dispatching processor.
func NewDispatch() *Dispatch {
	return &Dispatch{cache: make(map[job.CaseType]RowProcessor)}
}

func (d *Dispatch) Process(ctx context.Context, row Row, caseType job.CaseType) (EnrichedFields, error) {
	p, err := d.processor(caseType)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, row, caseType)
}

func (d *Dispatch) processor(c job.CaseType) (RowProcessor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.cache[c]; ok {
		return p, nil
	}
	p, err := NewProcessor(c)
	if err != nil {
		p = Passthrough{}
	}
	d.cache[c] = p
	return p, nil
}
