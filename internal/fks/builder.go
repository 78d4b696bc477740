package fks

import (
	"context"

	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/catalog"
	"github.com/tamirms/surfacehash/internal/surface"
)

// contextCheckInterval is how often to check for context cancellation while
// projecting samples.
const contextCheckInterval = 10000

// Placement maps each primary slot to the sample index it holds, -1 for
// empty slots. The caller uses it to materialize slot contents.
type Placement []int32

// projected is one sample after surface projection.
type projected struct {
	slot  uint64
	token Token
}

// builder holds the scratch state of one attempt. Nothing in it outlives
// Attempt except the returned Table and Placement.
type builder struct {
	layout *surface.Layout
	cat    *catalog.Catalog

	samples []projected
	slots   []Slot
	owner   Placement

	// groups[g] lists the primary slots of one redirect bucket, anchor first.
	groups   [][]uint32
	groupOf  map[uint64]int
	anchors  []uint64
	queue    []int32
	mixes    []uint64
	seenGen  []uint32
	gen      uint32
}

// Attempt runs one construction attempt against layout. It returns
// ErrAttemptFailed (wrapped) when the surface table cannot hold every sample
// or some bucket has no injective modulus up to MaxModulus; the caller is
// expected to grow the box and retry. Other errors are input violations and
// are not retryable.
func Attempt(ctx context.Context, src catalog.Source, layout *surface.Layout, cat *catalog.Catalog) (*Table, Placement, error) {
	b := &builder{
		layout:  layout,
		cat:     cat,
		groupOf: make(map[uint64]int),
	}
	if err := b.project(ctx, src); err != nil {
		return nil, nil, err
	}
	if err := b.placeNatural(); err != nil {
		return nil, nil, err
	}
	if err := b.placeCollisions(); err != nil {
		return nil, nil, err
	}
	buckets, err := b.buildBuckets()
	if err != nil {
		return nil, nil, err
	}
	t := &Table{layout: layout, catalog: cat, slots: b.slots, buckets: buckets}
	return t, b.owner, nil
}

// project computes every sample's natural slot and verify token.
func (b *builder) project(ctx context.Context, src catalog.Source) error {
	n := src.Len()
	b.samples = make([]projected, n)
	for i := 0; i < n; i++ {
		if i%contextCheckInterval == contextCheckInterval-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		nrm := src.Normal(i)
		id, ok := b.cat.Lookup(nrm)
		if !ok {
			return errors.Wrapf(surferrors.ErrInvalidInput, "sample %d: normal %v missing from catalog", i, nrm)
		}
		slot, distance, err := b.layout.Slot(src.Location(i), nrm)
		if err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
		b.samples[i] = projected{slot: slot, token: Token{Normal: id + 1, Distance: distance}}
	}
	return nil
}

// placeNatural occupies every sample's natural slot on a first-come basis
// and queues the rest.
func (b *builder) placeNatural() error {
	size := b.layout.TableSize()
	b.slots = make([]Slot, size)
	b.owner = make(Placement, size)
	for i := range b.owner {
		b.owner[i] = -1
	}
	for i, p := range b.samples {
		s := &b.slots[p.slot]
		switch {
		case s.Token.Empty():
			s.Token = p.token
			b.owner[p.slot] = int32(i)
		case s.Token == p.token:
			// Same slot and token means same boundary point, normal and
			// travel, hence the same location.
			return errors.Wrapf(surferrors.ErrDuplicateSample, "samples %d and %d", b.owner[p.slot], i)
		default:
			b.queue = append(b.queue, int32(i))
		}
	}
	return nil
}

// placeCollisions moves queued samples into free slots in slot order and
// records each one in its anchor's group.
func (b *builder) placeCollisions() error {
	if len(b.queue) == 0 {
		return nil
	}
	free := 0
	for i := range b.slots {
		if b.slots[i].Token.Empty() {
			free++
		}
	}
	if free < len(b.queue) {
		return errors.Wrapf(surferrors.ErrAttemptFailed, "surface table full: %d collisions, %d free slots", len(b.queue), free)
	}

	cursor := 0
	for _, i := range b.queue {
		for !b.slots[cursor].Token.Empty() {
			cursor++
		}
		p := b.samples[i]
		b.slots[cursor] = Slot{Token: p.token, Redirected: true}
		b.owner[cursor] = i

		g, ok := b.groupOf[p.slot]
		if !ok {
			g = len(b.groups)
			b.groupOf[p.slot] = g
			b.anchors = append(b.anchors, p.slot)
			b.groups = append(b.groups, []uint32{uint32(p.slot)})
		}
		b.groups[g] = append(b.groups[g], uint32(cursor))
	}
	return nil
}

// buildBuckets finds, per group, the smallest modulus k >= len(group) under
// which the secondary hash is injective, and links anchors to buckets.
func (b *builder) buildBuckets() ([]Bucket, error) {
	if len(b.groups) == 0 {
		return nil, nil
	}
	b.seenGen = make([]uint32, MaxModulus)
	buckets := make([]Bucket, len(b.groups))
	for g, members := range b.groups {
		if err := b.checkDistinct(members); err != nil {
			return nil, err
		}
		b.mixes = b.mixes[:0]
		for _, s := range members {
			tok := b.slots[s].Token
			b.mixes = append(b.mixes, SecondaryMix(b.cat.Normal(tok.Normal-1), tok.Distance))
		}
		k, ok := b.findModulus(len(members))
		if !ok {
			return nil, errors.Wrapf(surferrors.ErrAttemptFailed, "no injective modulus for bucket of %d at slot %d", len(members), b.anchors[g])
		}
		entries := make([]uint32, k)
		for j, s := range members {
			entries[b.mixes[j]%uint64(k)] = s + 1
		}
		buckets[g] = Bucket{Modulus: k, Slots: entries}
		b.slots[b.anchors[g]].Redirect = uint32(g + 1)
	}
	return buckets, nil
}

// checkDistinct rejects groups holding the same token twice. Members share
// a natural slot, so equal tokens mean equal locations.
func (b *builder) checkDistinct(members []uint32) error {
	seen := make(map[Token]uint32, len(members))
	for _, s := range members {
		tok := b.slots[s].Token
		if prev, dup := seen[tok]; dup {
			return errors.Wrapf(surferrors.ErrDuplicateSample, "samples %d and %d", b.owner[prev], b.owner[s])
		}
		seen[tok] = s
	}
	return nil
}

// findModulus scans k upward from m. Occupancy uses generation stamps so
// each trial clears in O(1).
func (b *builder) findModulus(m int) (uint32, bool) {
	for k := uint32(m); k <= MaxModulus; k++ {
		b.gen++
		if b.gen == 0 {
			clear(b.seenGen)
			b.gen = 1
		}
		ok := true
		for _, mix := range b.mixes {
			h := mix % uint64(k)
			if b.seenGen[h] == b.gen {
				ok = false
				break
			}
			b.seenGen[h] = b.gen
		}
		if ok {
			return k, true
		}
	}
	return 0, false
}
