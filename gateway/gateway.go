// Package gateway assembles per-block batches out of archive records.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/errgroup"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/loader"
	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/metrics"
	"github.com/subsquid/archive-gateway/selection"
)

const (
	moduleName = "gateway"
)

// Config configures a Gateway.
type Config struct {
	Capabilities      selection.Capabilities
	IncludeCallEvents bool
	// MaxLimit is the largest accepted batch limit. Zero means unbounded.
	MaxLimit          int
	LoaderWait        time.Duration
	LoaderMaxBatch    int
	MetadataCacheSize int64
}

// BatchRequest is the input of a batch query.
type BatchRequest struct {
	Limit                int                                      `json:"limit" validate:"required,min=1"`
	FromBlock            int64                                    `json:"fromBlock" validate:"min=0"`
	ToBlock              *int64                                   `json:"toBlock" validate:"omitempty,min=0"`
	EvmLogs              []selection.EvmLogSelectionInput         `json:"evmLogs" validate:"omitempty,dive"`
	EthereumTransactions []selection.EthTransactSelectionInput    `json:"ethereumTransactions" validate:"omitempty,dive"`
	ContractsEvents      []selection.ContractsEventSelectionInput `json:"contractsEvents" validate:"omitempty,dive"`
	Events               []selection.EventSelectionInput          `json:"events" validate:"omitempty,dive"`
	Calls                []selection.CallSelectionInput           `json:"calls" validate:"omitempty,dive"`
	IncludeAllBlocks     bool                                     `json:"includeAllBlocks"`
}

// Batch is the bundle of one block and its matched records.
type Batch struct {
	Header     archive.BlockHeader `json:"header"`
	Extrinsics []archive.Extrinsic `json:"extrinsics"`
	Calls      []archive.Call      `json:"calls"`
	Events     []archive.Event     `json:"events"`
}

// Gateway serves batch, metadata and status queries off an archive.
type Gateway struct {
	archive  archive.Archive
	cfg      Config
	metadata *ristretto.Cache[string, *archive.Metadata]
	metrics  *metrics.LoaderMetrics
	logger   *log.Logger
}

// New creates a new gateway.
func New(a archive.Archive, cfg Config, l *log.Logger) (*Gateway, error) {
	size := cfg.MetadataCacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *archive.Metadata]{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		l.Error("failed to create metadata cache", "error", err)
		return nil, err
	}
	return &Gateway{
		archive:  a,
		cfg:      cfg,
		metadata: cache,
		metrics:  metrics.NewDefaultLoaderMetrics("gateway"),
		logger:   l.WithModule(moduleName),
	}, nil
}

// Close releases the gateway caches.
func (g *Gateway) Close() {
	g.metadata.Close()
}

// Capabilities returns the enabled gated selection kinds.
func (g *Gateway) Capabilities() selection.Capabilities {
	return g.cfg.Capabilities
}

// Batch returns up to req.Limit blocks of the requested range, ascending by
// height, each with the records matched by the request selections.
func (g *Gateway) Batch(ctx context.Context, req *BatchRequest) ([]Batch, error) {
	set, err := g.selections(req)
	if err != nil {
		return nil, err
	}
	if err := g.checkRange(req); err != nil {
		return nil, err
	}

	blocks, err := g.archive.Blocks(ctx, archive.BlockRange{
		From:       req.FromBlock,
		To:         req.ToBlock,
		Limit:      req.Limit,
		IncludeAll: req.IncludeAllBlocks || set.IsEmpty(),
	}, set)
	if err != nil {
		return nil, archive.WrapError("blocks", err)
	}

	batches := make([]Batch, len(blocks))
	var pending []int
	for i, b := range blocks {
		batches[i] = Batch{
			Header:     b.Header,
			Extrinsics: []archive.Extrinsic{},
			Calls:      []archive.Call{},
			Events:     []archive.Event{},
		}
		switch {
		case b.Nested != nil:
			batches[i].Extrinsics = nonNil(b.Nested.Extrinsics)
			batches[i].Calls = nonNil(b.Nested.Calls)
			batches[i].Events = nonNil(b.Nested.Events)
		case !set.IsEmpty():
			pending = append(pending, i)
		}
	}
	if len(pending) > 0 {
		if err := g.loadNested(ctx, set, batches, pending); err != nil {
			return nil, err
		}
	}

	for i := range batches {
		toCamelCase(&batches[i])
	}
	g.logger.Debug("batch assembled",
		"from_block", req.FromBlock,
		"blocks", len(batches),
		"loaded", len(pending),
	)
	return batches, nil
}

// loadNested fills the records of batches[pending] through the block loaders:
// one archive call per entity kind for all pending blocks.
func (g *Gateway) loadNested(ctx context.Context, set *selection.Set, batches []Batch, pending []int) error {
	opts := []loader.Option{
		loader.WithWait(g.cfg.LoaderWait),
		loader.WithMaxBatch(g.cfg.LoaderMaxBatch),
		loader.WithMetrics(g.metrics),
	}
	extrinsics := NewExtrinsicLoader(ctx, g.archive, set, opts...)
	calls := NewCallLoader(ctx, g.archive, set, opts...)
	events := NewEventLoader(ctx, g.archive, set, opts...)

	xThunks := make([]loader.Thunk[[]archive.Extrinsic], len(pending))
	cThunks := make([]loader.Thunk[[]archive.Call], len(pending))
	eThunks := make([]loader.Thunk[[]archive.Event], len(pending))
	for j, i := range pending {
		id := batches[i].Header.ID
		xThunks[j] = extrinsics.LoadThunk(id)
		cThunks[j] = calls.LoadThunk(id)
		eThunks[j] = events.LoadThunk(id)
	}
	extrinsics.Flush()
	calls.Flush()
	events.Flush()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return await(ctx, xThunks, func(j int, v []archive.Extrinsic) { batches[pending[j]].Extrinsics = v })
	})
	eg.Go(func() error {
		return await(ctx, cThunks, func(j int, v []archive.Call) { batches[pending[j]].Calls = v })
	})
	eg.Go(func() error {
		return await(ctx, eThunks, func(j int, v []archive.Event) { batches[pending[j]].Events = v })
	})
	return eg.Wait()
}

func await[V any](ctx context.Context, thunks []loader.Thunk[[]V], assign func(int, []V)) error {
	for j, thunk := range thunks {
		v, err := thunk(ctx)
		if err != nil {
			return err
		}
		assign(j, nonNil(v))
	}
	return nil
}

func nonNil[V any](v []V) []V {
	if v == nil {
		return []V{}
	}
	return v
}

// selections converts the request inputs and rejects gated selection kinds.
func (g *Gateway) selections(req *BatchRequest) (*selection.Set, error) {
	set := &selection.Set{IncludeCallEvents: g.cfg.IncludeCallEvents}
	var err error
	if set.Events, err = selection.FromEventInputs(req.Events); err != nil {
		return nil, &InputError{Field: "events", Err: err}
	}
	if set.Calls, err = selection.FromCallInputs(req.Calls); err != nil {
		return nil, &InputError{Field: "calls", Err: err}
	}
	if set.EvmLogs, err = selection.FromEvmLogInputs(req.EvmLogs); err != nil {
		return nil, &InputError{Field: "evmLogs", Err: err}
	}
	if set.EthTransactions, err = selection.FromEthTransactInputs(req.EthereumTransactions); err != nil {
		return nil, &InputError{Field: "ethereumTransactions", Err: err}
	}
	if set.ContractsEvents, err = selection.FromContractsEventInputs(req.ContractsEvents); err != nil {
		return nil, &InputError{Field: "contractsEvents", Err: err}
	}
	if err := set.Validate(g.cfg.Capabilities); err != nil {
		var ue *selection.UnsupportedError
		if errors.As(err, &ue) {
			return nil, &InputError{Field: ue.Field, Err: err}
		}
		return nil, err
	}
	return set, nil
}

func (g *Gateway) checkRange(req *BatchRequest) error {
	switch {
	case req.Limit < 1:
		return &InputError{Field: "limit", Err: fmt.Errorf("must be positive, got %d", req.Limit)}
	case g.cfg.MaxLimit > 0 && req.Limit > g.cfg.MaxLimit:
		return &InputError{Field: "limit", Err: fmt.Errorf("must not exceed %d, got %d", g.cfg.MaxLimit, req.Limit)}
	case req.FromBlock < 0:
		return &InputError{Field: "fromBlock", Err: fmt.Errorf("must not be negative, got %d", req.FromBlock)}
	case req.ToBlock != nil && *req.ToBlock < req.FromBlock:
		return &InputError{Field: "toBlock", Err: fmt.Errorf("must not be below fromBlock %d, got %d", req.FromBlock, *req.ToBlock)}
	}
	return nil
}

// Metadata returns every known runtime metadata record.
func (g *Gateway) Metadata(ctx context.Context) ([]archive.Metadata, error) {
	ms, err := g.archive.Metadata(ctx)
	if err != nil {
		return nil, archive.WrapError("metadata", err)
	}
	if ms == nil {
		ms = []archive.Metadata{}
	}
	return ms, nil
}

// MetadataByID returns the runtime metadata record with the id, or nil if
// there is none. Found records are cached.
func (g *Gateway) MetadataByID(ctx context.Context, id string) (*archive.Metadata, error) {
	if m, ok := g.metadata.Get(id); ok {
		out := *m
		return &out, nil
	}
	m, err := g.archive.MetadataByID(ctx, id)
	if err != nil {
		return nil, archive.WrapError("metadata_by_id", err)
	}
	if m == nil {
		return nil, nil
	}
	cached := *m
	g.metadata.Set(id, &cached, 1)
	g.metadata.Wait()
	return m, nil
}

// Status returns the indexing status of the archive.
func (g *Gateway) Status(ctx context.Context) (*archive.Status, error) {
	s, err := g.archive.Status(ctx)
	if err != nil {
		return nil, archive.WrapError("status", err)
	}
	return s, nil
}
