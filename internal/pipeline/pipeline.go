// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/job"
	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/mapper"
	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
)

const (
	loggerName = "feedagg:pipeline"
)

// Result summarizes a pipeline run. It is returned even on failure with the fields known at
// the time the run stopped.
type Result struct {
	RunID       string
	SupplierID  int
	MultiSource bool
	// RowsRead counts the rows handed to the mapper.
	RowsRead int
	// Emitted counts the records acknowledged by the destination.
	Emitted int
	// Skipped lists the rows dropped while merging sub-sources or deduplicating mapped records.
	Skipped  []record.Skip
	Duration time.Duration
}

type Pipeline struct {
	readers       source.Resolver
	destination   destination.Sender
	parallelReads bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithParallelReads makes multi-source jobs fetch every sub-source concurrently.
// Results are still folded in declaration order.
func WithParallelReads(enabled bool) Option {
	return func(p *Pipeline) {
		p.parallelReads = enabled
	}
}

func New(readers source.Resolver, destination destination.Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		readers:     readers,
		destination: destination,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the job described by payload.
func (p *Pipeline) Run(ctx context.Context, payload []byte) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}
	log := logger.FromContext(ctx).WithName(loggerName).With("runId", result.RunID)
	defer func() {
		result.Duration = time.Since(start)
	}()

	log.Trace("parsing job")
	spec, err := job.Parse(payload)
	if err != nil {
		log.Error("invalid job", "error", err, "input", string(payload))
		return result, err
	}
	result.SupplierID = spec.SupplierID
	result.MultiSource = spec.IsMultiSource()
	if spec.Name != "" {
		log = log.With("job", spec.Name)
	}
	ctx = logger.WithContext(ctx, log)

	var rows *record.Set
	if spec.IsMultiSource() {
		log.Trace("reading sub-sources", "count", len(spec.SubSources))
		merged, err := p.readMultiSource(ctx, spec)
		if err != nil {
			log.Error("reading sub-sources failed", "supplierId", spec.SupplierID, "error", err)
			return result, err
		}
		rows = merged.Records()
		result.Skipped = append(result.Skipped, merged.Skipped()...)
	} else {
		log.Trace("reading source", "typeId", spec.TypeID)
		rows, err = p.readSingleSource(ctx, spec)
		if err != nil {
			log.Error("reading source failed", "supplierId", spec.SupplierID, "error", err)
			return result, err
		}
	}
	result.RowsRead = rows.Len()

	log.Trace("mapping rows", "rows", result.RowsRead)
	output, err := mapper.New(spec.Columns).Map(ctx, rows, spec.SupplierID, spec.Version)
	if err != nil {
		args := []any{"supplierId", spec.SupplierID, "error", err}
		if missingErr := (*mapper.MissingFieldsError)(nil); errors.As(err, &missingErr) {
			args = append(args, "missingFields", missingErr.MissingFields(), "dataRow", missingErr.Rows[len(missingErr.Rows)-1].Fields)
		}
		log.Error("mapping failed", args...)
		return result, err
	}
	result.Skipped = append(result.Skipped, output.Skipped()...)
	if len(result.Skipped) > 0 {
		log.Warn("rows dropped", "supplierId", spec.SupplierID, "count", len(result.Skipped))
	}

	log.Trace("emitting records", "records", output.Len())
	for key, r := range output.All() {
		data := &destination.Data{
			RunID:      result.RunID,
			SupplierID: spec.SupplierID,
			Key:        key,
			Fields:     r.Fields(),
		}
		if err := p.destination.SendData(ctx, data); err != nil {
			err = emitFailure(key, err)
			log.Error("emit failed", "supplierId", spec.SupplierID, "emitted", result.Emitted, "error", err)
			return result, err
		}
		result.Emitted++
	}

	log.Info("job completed",
		"supplierId", spec.SupplierID,
		"multiSource", result.MultiSource,
		"rows", result.RowsRead,
		"emitted", result.Emitted,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// readSingleSource reads the rows of a single-source job.
func (p *Pipeline) readSingleSource(ctx context.Context, spec *job.Spec) (*record.Set, error) {
	if spec.TypeID == nil {
		return nil, &unsupportedSourceError{}
	}

	reader, err := p.resolve(ctx, *spec.TypeID, spec.SupplierID, "")
	if err != nil {
		return nil, err
	}

	rows, err := reader.Read(ctx, spec.Locator, spec.Selector)
	if err != nil {
		return nil, readerFailure(spec.Locator, err)
	}
	if rows == nil {
		rows = record.NewSet()
	}
	return rows, nil
}

// readMultiSource resolves every sub-source reader before any I/O happens, then seeds a merge
// set with the first sub-source and enriches it with the others in declaration order.
func (p *Pipeline) readMultiSource(ctx context.Context, spec *job.Spec) (*record.MergeSet, error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	if len(spec.SubSources) == 0 {
		return record.NewMergeSet(mapper.KeyField, nil), nil
	}

	readers := make([]source.Reader, len(spec.SubSources))
	for i, subSource := range spec.SubSources {
		reader, err := p.resolve(ctx, subSource.TypeID, spec.SupplierID, subSource.Name)
		if err != nil {
			return nil, err
		}
		readers[i] = reader
	}

	sets := make([]*record.Set, len(spec.SubSources))
	read := func(ctx context.Context, i int) error {
		subSource := spec.SubSources[i]
		set, err := readers[i].Read(ctx, subSource.Locator, subSource.SelectorOr(spec.Selector))
		if err != nil {
			return readerFailure(subSource.Name, err)
		}
		sets[i] = set
		return nil
	}

	if p.parallelReads {
		group, groupCtx := errgroup.WithContext(ctx)
		for i := range spec.SubSources {
			group.Go(func() error {
				return read(groupCtx, i)
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	var merged *record.MergeSet
	for i, subSource := range spec.SubSources {
		if !p.parallelReads {
			if err := read(ctx, i); err != nil {
				return nil, err
			}
		}

		if i == 0 {
			merged = record.NewMergeSetFromRecords(sets[i], subSource.JoinKey)
			log.Debug("merge base loaded", "subSource", subSource.Name, "rows", sets[i].Len(), "keys", merged.Len())
			continue
		}

		applied := merged.Enrich(sets[i], subSource.JoinKey, subSource.Fields)
		log.Debug("sub-source merged", "subSource", subSource.Name, "rows", sets[i].Len(), "applied", applied)
	}

	return merged, nil
}

// resolve returns the reader for typeID, mapping registry failures to the pipeline taxonomy.
func (p *Pipeline) resolve(ctx context.Context, typeID, supplierID int, subSource string) (source.Reader, error) {
	reader, err := p.readers.Resolve(ctx, typeID, supplierID)
	switch {
	case errors.Is(err, source.ErrUnsupportedType):
		return nil, &unsupportedSourceError{TypeID: &typeID, SubSource: subSource}
	case err != nil:
		name := subSource
		if name == "" {
			name = "source"
		}
		return nil, readerFailure(name, err)
	}

	return reader, nil
}
