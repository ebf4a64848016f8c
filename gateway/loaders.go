package gateway

import (
	"context"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/loader"
	"github.com/subsquid/archive-gateway/selection"
)

type (
	ExtrinsicLoader = loader.Loader[archive.BlockID, []archive.Extrinsic]
	CallLoader      = loader.Loader[archive.BlockID, []archive.Call]
	EventLoader     = loader.Loader[archive.BlockID, []archive.Event]
)

// NewExtrinsicLoader returns a loader of the extrinsics of blocks matched by
// the set.
func NewExtrinsicLoader(ctx context.Context, a archive.Archive, set *selection.Set, opts ...loader.Option) *ExtrinsicLoader {
	fetch := func(ctx context.Context, ids []archive.BlockID) (map[archive.BlockID][]archive.Extrinsic, error) {
		records, err := a.Extrinsics(ctx, ids, set)
		if err != nil {
			return nil, archive.WrapError("extrinsics", err)
		}
		return loader.GroupBy(ids, records, func(x archive.Extrinsic) archive.BlockID { return x.BlockID }), nil
	}
	return loader.New(ctx, fetch, append([]loader.Option{loader.WithName("extrinsic")}, opts...)...)
}

// NewCallLoader returns a loader of the calls of blocks matched by the set.
func NewCallLoader(ctx context.Context, a archive.Archive, set *selection.Set, opts ...loader.Option) *CallLoader {
	fetch := func(ctx context.Context, ids []archive.BlockID) (map[archive.BlockID][]archive.Call, error) {
		records, err := a.Calls(ctx, ids, set)
		if err != nil {
			return nil, archive.WrapError("calls", err)
		}
		return loader.GroupBy(ids, records, func(c archive.Call) archive.BlockID { return c.BlockID }), nil
	}
	return loader.New(ctx, fetch, append([]loader.Option{loader.WithName("call")}, opts...)...)
}

// NewEventLoader returns a loader of the events of blocks matched by the set.
func NewEventLoader(ctx context.Context, a archive.Archive, set *selection.Set, opts ...loader.Option) *EventLoader {
	fetch := func(ctx context.Context, ids []archive.BlockID) (map[archive.BlockID][]archive.Event, error) {
		records, err := a.Events(ctx, ids, set)
		if err != nil {
			return nil, archive.WrapError("events", err)
		}
		return loader.GroupBy(ids, records, func(e archive.Event) archive.BlockID { return e.BlockID }), nil
	}
	return loader.New(ctx, fetch, append([]loader.Option{loader.WithName("event")}, opts...)...)
}
