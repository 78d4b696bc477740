package surfacehash

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/catalog"
	"github.com/tamirms/surfacehash/internal/fks"
	"github.com/tamirms/surfacehash/internal/lattice"
	"github.com/tamirms/surfacehash/internal/surface"
)

// contextCheckInterval is how often to check for context cancellation while
// fetching or validating samples.
const contextCheckInterval = 10000

// Map is a built spatial hash. It is immutable; Get and the other read
// methods are safe for concurrent use.
type Map[T any] struct {
	table    *fks.Table
	contents []T // indexed by primary slot
	n        int
	attempts int
	digest   uint64
}

// Build fetches n samples through fn and constructs a Map over them.
//
// Construction runs attempts against a growing box: the first attempt uses
// the tight bounding box of the locations (or WithInitialExtents), and each
// failed attempt widens every extent by 2·d and the offset by d. When
// WithMaxAttempts attempts all fail, Build returns an error wrapping
// ErrConstructionExhausted. Input contract violations (zero normals,
// mismatched dimensions, duplicates, ambiguous normals) wrap
// ErrInvalidInput and are never retried.
func Build[T any](ctx context.Context, fn SampleFunc[T], n int, opts ...BuildOption) (*Map[T], error) {
	if n <= 0 {
		return nil, surferrors.ErrEmptyInput
	}
	samples := make([]Sample[T], n)
	for i := range samples {
		if i%contextCheckInterval == contextCheckInterval-1 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		// Accessors may reuse their slices between calls.
		s := fn(i)
		s.Location = slices.Clone(s.Location)
		s.Normal = slices.Clone(s.Normal)
		samples[i] = s
	}
	return build(ctx, samples, opts)
}

// BuildSlice constructs a Map over samples. See Build.
func BuildSlice[T any](ctx context.Context, samples []Sample[T], opts ...BuildOption) (*Map[T], error) {
	if len(samples) == 0 {
		return nil, surferrors.ErrEmptyInput
	}
	return build(ctx, samples, opts)
}

func build[T any](ctx context.Context, samples []Sample[T], opts []BuildOption) (*Map[T], error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	extents, err := startExtents(samples, cfg.initialExtents)
	if err != nil {
		return nil, err
	}

	src := sampleSource[T](samples)
	logger := cfg.logger.WithFields(log.Fields{"samples": len(samples), "dims": len(extents)})

	var (
		box      = lattice.NewBox(extents)
		attempts int
		table    *fks.Table
		owner    fks.Placement
	)
	op := func() error {
		if attempts > 0 {
			next, err := box.Grow()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("%w: %w", surferrors.ErrConstructionExhausted, err))
			}
			box = next
		}
		attempts++
		t, o, err := runAttempt(ctx, src, box, cfg.ambiguityCheck && attempts == 1, logger.WithField("attempt", attempts))
		if err != nil {
			if errors.Is(err, surferrors.ErrAttemptFailed) {
				return err
			}
			return backoff.Permanent(err)
		}
		table, owner = t, o
		return nil
	}
	notify := func(err error, _ time.Duration) {
		logger.WithError(err).WithField("attempt", attempts).Warn("construction attempt failed, growing box")
		if cfg.retryNotify != nil {
			cfg.retryNotify(attempts, err)
		}
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(cfg.maxAttempts-1)), ctx)

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errors.Is(err, surferrors.ErrAttemptFailed) && !errors.Is(err, surferrors.ErrConstructionExhausted) {
			return nil, fmt.Errorf("%w after %d attempts: %w", surferrors.ErrConstructionExhausted, attempts, err)
		}
		return nil, err
	}

	m := &Map[T]{
		table:    table,
		contents: make([]T, len(owner)),
		n:        len(samples),
		attempts: attempts,
		digest:   sampleDigest(samples),
	}
	for slot, i := range owner {
		if i >= 0 {
			m.contents[slot] = samples[i].Contents
		}
	}

	st := table.Stats()
	logger.WithFields(log.Fields{
		"attempts":   attempts,
		"extents":    box.Extents,
		"offset":     box.Offset,
		"table_size": st.TableSize,
		"buckets":    st.Buckets,
		"redirected": st.Redirected,
	}).Info("surface hash built")
	return m, nil
}

// runAttempt builds a fresh catalog and layout for box and runs one
// construction attempt against them.
func runAttempt(ctx context.Context, src catalog.Source, box lattice.Box, checkAmbiguity bool, logger log.FieldLogger) (*fks.Table, fks.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	layout, err := surface.NewLayout(box)
	if err != nil {
		return nil, nil, err
	}
	logger.WithFields(log.Fields{
		"extents":    box.Extents,
		"offset":     box.Offset,
		"table_size": layout.TableSize(),
	}).Debug("construction attempt")

	cat, err := catalog.Build(src, box.Extents)
	if err != nil {
		return nil, nil, err
	}
	if checkAmbiguity {
		shared := 0
		for i := 0; i < src.Len(); i++ {
			if !cat.Resolves(src.Location(i), src.Normal(i)) {
				return nil, nil, fmt.Errorf("sample %d at %v: %w", i, src.Location(i), surferrors.ErrAmbiguousNormal)
			}
			if cat.Ambiguous(src.Location(i)) {
				shared++
			}
		}
		if shared > 0 {
			logger.WithField("positions", shared).Debug("positions resolved through lowest shared normal")
		}
	}
	return fks.Attempt(ctx, src, layout, cat)
}

// startExtents returns the first attempt's extents: explicit ones after
// checking that they cover every location, else the tight bounding box.
func startExtents[T any](samples []Sample[T], explicit []uint32) ([]uint32, error) {
	dims := len(samples[0].Location)
	if explicit != nil {
		dims = len(explicit)
	}
	if err := lattice.CheckDims(dims); err != nil {
		return nil, err
	}
	extents := make([]uint32, dims)
	for i, s := range samples {
		if len(s.Location) != dims || len(s.Normal) != dims {
			return nil, fmt.Errorf("sample %d has %d/%d components, want %d: %w", i, len(s.Location), len(s.Normal), dims, surferrors.ErrDimensionMismatch)
		}
		for a, v := range s.Location {
			extents[a] = max(extents[a], v)
		}
	}
	if explicit == nil {
		return extents, nil
	}
	for a, e := range explicit {
		if extents[a] > e {
			return nil, fmt.Errorf("axis %d: location %d beyond initial extent %d: %w", a, extents[a], e, surferrors.ErrLocationOutOfBox)
		}
	}
	return append([]uint32(nil), explicit...), nil
}

// Get returns the contents stored at pos, or ErrNotFound.
func (m *Map[T]) Get(pos []uint32) (T, error) {
	slot, ok := m.table.Locate(pos)
	if !ok {
		var zero T
		return zero, surferrors.ErrNotFound
	}
	return m.contents[slot], nil
}

// Lookup is the comma-ok form of Get.
func (m *Map[T]) Lookup(pos []uint32) (T, bool) {
	slot, ok := m.table.Locate(pos)
	if !ok {
		var zero T
		return zero, false
	}
	return m.contents[slot], true
}

// Contains reports whether a sample is stored at pos.
func (m *Map[T]) Contains(pos []uint32) bool {
	_, ok := m.table.Locate(pos)
	return ok
}

// Dims returns the dimension count.
func (m *Map[T]) Dims() int {
	return m.table.Layout().Dims()
}

// Len returns the number of stored samples.
func (m *Map[T]) Len() int {
	return m.n
}

// MemorySize returns the bytes owned by the map's tables.
func (m *Map[T]) MemorySize() int {
	var zero T
	return m.table.MemorySize() + cap(m.contents)*int(unsafe.Sizeof(zero))
}

// Stats returns construction and occupancy statistics.
func (m *Map[T]) Stats() *Stats {
	st := newStats(m.table, uint64(m.n), m.attempts, m.digest)
	st.MemorySize = m.MemorySize()
	return st
}

// Validate re-fetches n samples through fn and checks, using workers
// goroutines, that every one resolves to its own contents. equal may be nil
// to check presence only.
func (m *Map[T]) Validate(ctx context.Context, fn SampleFunc[T], n int, equal func(a, b T) bool, workers int) error {
	if n <= 0 {
		return nil
	}
	workers = max(1, workers)
	chunk := (n + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		hi := min(n, lo+chunk)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%contextCheckInterval == contextCheckInterval-1 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				s := fn(i)
				got, err := m.Get(s.Location)
				if err != nil {
					return fmt.Errorf("sample %d at %v: %w", i, s.Location, err)
				}
				if equal != nil && !equal(got, s.Contents) {
					return fmt.Errorf("sample %d at %v: %w", i, s.Location, surferrors.ErrContentsMismatch)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
