// Package postgres implements the archive over the PostgreSQL schema written
// by the substrate indexer.
package postgres

import (
	"context"
	"errors"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/metrics"
	"github.com/subsquid/archive-gateway/selection"
	"github.com/subsquid/archive-gateway/storage"
)

const (
	moduleName = "postgres_archive"
)

// Archive is an archive.Archive backed by target storage.
type Archive struct {
	db      storage.TargetStorage
	metrics metrics.DatabaseMetrics
	logger  *log.Logger
}

var _ archive.Archive = (*Archive)(nil)

// New creates a new archive over db.
func New(db storage.TargetStorage, l *log.Logger) *Archive {
	return &Archive{
		db:      db,
		metrics: metrics.NewDefaultDatabaseMetrics("archive"),
		logger:  l.WithModule(moduleName),
	}
}

// Close closes the backing storage.
func (a *Archive) Close() {
	a.db.Close()
}

// observe times a database operation and counts its outcome.
func (a *Archive) observe(op string) func(error) {
	timer := a.metrics.DatabaseLatencies(a.db.Name(), op)
	return func(err error) {
		timer.ObserveDuration()
		status := "success"
		if err != nil {
			status = "failure"
		}
		a.metrics.DatabaseOperations(a.db.Name(), op, status).Inc()
	}
}

func blockKeys(ids []archive.BlockID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Blocks implements archive.Archive.
func (a *Archive) Blocks(ctx context.Context, r archive.BlockRange, set *selection.Set) (blocks []archive.Block, err error) {
	done := a.observe("blocks")
	defer func() { done(err) }()

	sql, args := blocksQuery(r.From, r.To, r.Limit, r.IncludeAll, set)
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, archive.WrapError("blocks", err)
	}
	defer rows.Close()

	blocks = []archive.Block{}
	for rows.Next() {
		var h archive.BlockHeader
		if err = rows.Scan(&h.ID, &h.Height, &h.Hash, &h.ParentHash, &h.Timestamp, &h.SpecID, &h.Validator); err != nil {
			return nil, archive.WrapError("blocks", err)
		}
		blocks = append(blocks, archive.Block{Header: h})
	}
	if err = rows.Err(); err != nil {
		return nil, archive.WrapError("blocks", err)
	}
	return blocks, nil
}

// Extrinsics implements archive.Archive.
func (a *Archive) Extrinsics(ctx context.Context, ids []archive.BlockID, set *selection.Set) (out []archive.Extrinsic, err error) {
	done := a.observe("extrinsics")
	defer func() { done(err) }()

	sql, args := extrinsicsQuery(blockKeys(ids), set)
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, archive.WrapError("extrinsics", err)
	}
	defer rows.Close()

	out = []archive.Extrinsic{}
	for rows.Next() {
		var x archive.Extrinsic
		var payload string
		if err = rows.Scan(&x.ID, &x.BlockID, &payload); err != nil {
			return nil, archive.WrapError("extrinsics", err)
		}
		if x.Payload, err = archive.ParsePayload([]byte(payload)); err != nil {
			return nil, archive.WrapError("extrinsics", err)
		}
		out = append(out, x)
	}
	if err = rows.Err(); err != nil {
		return nil, archive.WrapError("extrinsics", err)
	}
	return out, nil
}

// Calls implements archive.Archive.
func (a *Archive) Calls(ctx context.Context, ids []archive.BlockID, set *selection.Set) (out []archive.Call, err error) {
	done := a.observe("calls")
	defer func() { done(err) }()

	sql, args := callsQuery(blockKeys(ids), set)
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, archive.WrapError("calls", err)
	}
	defer rows.Close()

	out = []archive.Call{}
	for rows.Next() {
		var c archive.Call
		var payload string
		if err = rows.Scan(&c.ID, &c.BlockID, &c.ExtrinsicID, &c.ParentID, &payload); err != nil {
			return nil, archive.WrapError("calls", err)
		}
		if c.Payload, err = archive.ParsePayload([]byte(payload)); err != nil {
			return nil, archive.WrapError("calls", err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, archive.WrapError("calls", err)
	}
	return out, nil
}

// Events implements archive.Archive.
func (a *Archive) Events(ctx context.Context, ids []archive.BlockID, set *selection.Set) (out []archive.Event, err error) {
	done := a.observe("events")
	defer func() { done(err) }()

	sql, args := eventsQuery(blockKeys(ids), set)
	rows, err := a.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, archive.WrapError("events", err)
	}
	defer rows.Close()

	out = []archive.Event{}
	for rows.Next() {
		var e archive.Event
		var payload string
		if err = rows.Scan(&e.ID, &e.BlockID, &e.ExtrinsicID, &e.CallID, &payload); err != nil {
			return nil, archive.WrapError("events", err)
		}
		if e.Payload, err = archive.ParsePayload([]byte(payload)); err != nil {
			return nil, archive.WrapError("events", err)
		}
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, archive.WrapError("events", err)
	}
	return out, nil
}

const metadataColumns = `id, spec_name, spec_version, block_height, block_hash, hex`

// Metadata implements archive.Archive.
func (a *Archive) Metadata(ctx context.Context) (out []archive.Metadata, err error) {
	done := a.observe("metadata")
	defer func() { done(err) }()

	rows, err := a.db.Query(ctx, `
		SELECT `+metadataColumns+`
		FROM metadata
		ORDER BY block_height`)
	if err != nil {
		return nil, archive.WrapError("metadata", err)
	}
	defer rows.Close()

	out = []archive.Metadata{}
	for rows.Next() {
		var m archive.Metadata
		if err = rows.Scan(&m.ID, &m.SpecName, &m.SpecVersion, &m.BlockHeight, &m.BlockHash, &m.Hex); err != nil {
			return nil, archive.WrapError("metadata", err)
		}
		out = append(out, m)
	}
	if err = rows.Err(); err != nil {
		return nil, archive.WrapError("metadata", err)
	}
	return out, nil
}

// MetadataByID implements archive.Archive.
func (a *Archive) MetadataByID(ctx context.Context, id string) (_ *archive.Metadata, err error) {
	done := a.observe("metadata_by_id")
	defer func() { done(err) }()

	var m archive.Metadata
	err = a.db.QueryRow(ctx, `
		SELECT `+metadataColumns+`
		FROM metadata
		WHERE id = $1`, id,
	).Scan(&m.ID, &m.SpecName, &m.SpecVersion, &m.BlockHeight, &m.BlockHash, &m.Hex)
	switch {
	case errors.Is(err, storage.ErrNoRows):
		return nil, nil
	case err != nil:
		a.logger.Error("failed to fetch metadata", "error", err, "id", id)
		return nil, archive.WrapError("metadata_by_id", err)
	}
	return &m, nil
}

// Status implements archive.Archive.
func (a *Archive) Status(ctx context.Context) (_ *archive.Status, err error) {
	done := a.observe("status")
	defer func() { done(err) }()

	var head int64
	if err = a.db.QueryRow(ctx, `SELECT COALESCE(MAX(height), -1) FROM block`).Scan(&head); err != nil {
		return nil, archive.WrapError("status", err)
	}
	return &archive.Status{Head: head}, nil
}
