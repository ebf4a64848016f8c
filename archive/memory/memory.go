// Package memory implements an archive over in-memory records.
package memory

import (
	"context"
	"slices"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/selection"
)

// Call is a stored call together with its match attributes.
type Call struct {
	archive.Call
	Name string
	// EthContract and EthSighash are set for Ethereum.transact calls.
	EthContract string
	EthSighash  string
}

func (c *Call) record() selection.CallRecord {
	return selection.CallRecord{Name: c.Name, EthContract: c.EthContract, EthSighash: c.EthSighash}
}

// Event is a stored event together with its match attributes.
type Event struct {
	archive.Event
	Name     string
	Contract string
	Topics   []string
}

func (e *Event) record() selection.EventRecord {
	return selection.EventRecord{Name: e.Name, Contract: e.Contract, Topics: e.Topics}
}

// Data is the content of a memory archive. Records of a block are kept in
// storage order.
type Data struct {
	Blocks     []archive.BlockHeader
	Extrinsics []archive.Extrinsic
	Calls      []Call
	Events     []Event
	Metadata   []archive.Metadata
}

// Archive is an archive.Archive over Data.
// The data must not be modified once the archive is created.
type Archive struct {
	data   Data
	nested bool
}

var _ archive.Archive = (*Archive)(nil)

// Option configures an Archive.
type Option func(*Archive)

// WithNested makes Blocks return the matched records of every block, so the
// caller needs no further round trips.
func WithNested() Option {
	return func(a *Archive) { a.nested = true }
}

// New creates a memory archive. Blocks are kept sorted by height.
func New(data Data, opts ...Option) *Archive {
	data.Blocks = slices.Clone(data.Blocks)
	slices.SortStableFunc(data.Blocks, func(a, b archive.BlockHeader) int {
		switch {
		case a.Height < b.Height:
			return -1
		case a.Height > b.Height:
			return 1
		}
		return 0
	})
	a := &Archive{data: data}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// plan is the outcome of applying a selection set to a group of blocks.
type plan struct {
	extrinsics map[string]struct{}
	calls      map[string]struct{}
	events     map[string]struct{}
	// blocks holds the blocks with at least one included record.
	blocks map[archive.BlockID]struct{}
}

// resolve applies the set to the records of the blocks, following the
// relations between them:
//   - a matched call pulls in its extrinsic;
//   - a matched event pulls in its extrinsic and call if its selection asks so;
//   - with IncludeCallEvents, a matched call pulls in the events it emitted.
func (a *Archive) resolve(blocks map[archive.BlockID]struct{}, set *selection.Set) *plan {
	p := &plan{
		extrinsics: make(map[string]struct{}),
		calls:      make(map[string]struct{}),
		events:     make(map[string]struct{}),
		blocks:     make(map[archive.BlockID]struct{}),
	}
	matchedCalls := make(map[string]struct{})
	for i := range a.data.Calls {
		c := &a.data.Calls[i]
		if _, ok := blocks[c.BlockID]; !ok || !set.MatchCall(c.record()) {
			continue
		}
		matchedCalls[c.ID] = struct{}{}
		p.calls[c.ID] = struct{}{}
		p.extrinsics[c.ExtrinsicID] = struct{}{}
		p.blocks[c.BlockID] = struct{}{}
	}
	for i := range a.data.Events {
		e := &a.data.Events[i]
		if _, ok := blocks[e.BlockID]; !ok {
			continue
		}
		m := set.MatchEvent(e.record())
		if !m.Matched {
			if e.CallID == nil || !set.IncludeCallEvents {
				continue
			}
			if _, ok := matchedCalls[*e.CallID]; !ok {
				continue
			}
		}
		p.events[e.ID] = struct{}{}
		p.blocks[e.BlockID] = struct{}{}
		if m.Extrinsic && e.ExtrinsicID != nil {
			p.extrinsics[*e.ExtrinsicID] = struct{}{}
		}
		if m.Call && e.CallID != nil {
			p.calls[*e.CallID] = struct{}{}
		}
	}
	return p
}

func keySet(ids []archive.BlockID) map[archive.BlockID]struct{} {
	out := make(map[archive.BlockID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// Blocks implements archive.Archive.
func (a *Archive) Blocks(ctx context.Context, r archive.BlockRange, set *selection.Set) ([]archive.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var inRange []archive.BlockID
	for _, h := range a.data.Blocks {
		if r.Contains(h.Height) {
			inRange = append(inRange, h.ID)
		}
	}
	p := a.resolve(keySet(inRange), set)

	out := []archive.Block{}
	for _, h := range a.data.Blocks {
		if r.Limit > 0 && len(out) >= r.Limit {
			break
		}
		if !r.Contains(h.Height) {
			continue
		}
		if _, ok := p.blocks[h.ID]; !ok && !r.IncludeAll {
			continue
		}
		b := archive.Block{Header: h}
		if a.nested {
			ids := keySet([]archive.BlockID{h.ID})
			b.Nested = &archive.Nested{
				Extrinsics: a.extrinsics(ids, p, set),
				Calls:      a.calls(ids, p, set),
				Events:     a.events(ids, p, set),
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// Extrinsics implements archive.Archive.
func (a *Archive) Extrinsics(ctx context.Context, blocks []archive.BlockID, set *selection.Set) ([]archive.Extrinsic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := keySet(blocks)
	return a.extrinsics(ids, a.resolve(ids, set), set), nil
}

// Calls implements archive.Archive.
func (a *Archive) Calls(ctx context.Context, blocks []archive.BlockID, set *selection.Set) ([]archive.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := keySet(blocks)
	return a.calls(ids, a.resolve(ids, set), set), nil
}

// Events implements archive.Archive.
func (a *Archive) Events(ctx context.Context, blocks []archive.BlockID, set *selection.Set) ([]archive.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := keySet(blocks)
	return a.events(ids, a.resolve(ids, set), set), nil
}

func (a *Archive) extrinsics(blocks map[archive.BlockID]struct{}, p *plan, set *selection.Set) []archive.Extrinsic {
	cols := set.ExtrinsicProjection().Columns()
	out := []archive.Extrinsic{}
	for _, x := range a.data.Extrinsics {
		if _, ok := blocks[x.BlockID]; !ok {
			continue
		}
		if _, ok := p.extrinsics[x.ID]; !ok {
			continue
		}
		x.Payload = x.Payload.Select(cols...)
		out = append(out, x)
	}
	return out
}

func (a *Archive) calls(blocks map[archive.BlockID]struct{}, p *plan, set *selection.Set) []archive.Call {
	cols := set.CallProjection().Columns()
	out := []archive.Call{}
	for _, c := range a.data.Calls {
		if _, ok := blocks[c.BlockID]; !ok {
			continue
		}
		if _, ok := p.calls[c.ID]; !ok {
			continue
		}
		rec := c.Call
		rec.Payload = rec.Payload.Select(cols...)
		out = append(out, rec)
	}
	return out
}

func (a *Archive) events(blocks map[archive.BlockID]struct{}, p *plan, set *selection.Set) []archive.Event {
	cols := set.EventProjection().Columns()
	out := []archive.Event{}
	for _, e := range a.data.Events {
		if _, ok := blocks[e.BlockID]; !ok {
			continue
		}
		if _, ok := p.events[e.ID]; !ok {
			continue
		}
		rec := e.Event
		rec.Payload = rec.Payload.Select(cols...)
		out = append(out, rec)
	}
	return out
}

// Metadata implements archive.Archive.
func (a *Archive) Metadata(ctx context.Context) ([]archive.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(a.data.Metadata), nil
}

// MetadataByID implements archive.Archive.
func (a *Archive) MetadataByID(ctx context.Context, id string) (*archive.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, m := range a.data.Metadata {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, nil
}

// Status implements archive.Archive.
func (a *Archive) Status(ctx context.Context) (*archive.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	head := int64(-1)
	if n := len(a.data.Blocks); n > 0 {
		head = a.data.Blocks[n-1].Height
	}
	return &archive.Status{Head: head}, nil
}
