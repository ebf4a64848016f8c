// Package storage defines storage interfaces.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// QueryBatch represents a batch of queries to be executed atomically.
type QueryBatch = pgx.Batch

// QueryResults represents the results from a read query.
type QueryResults = pgx.Rows

// QueryResult represents the result from a read query.
type QueryResult = pgx.Row

// ErrNoRows is returned by QueryResult.Scan when the query selected no rows.
var ErrNoRows = pgx.ErrNoRows

// TargetStorage defines an interface for reading indexed archive data.
type TargetStorage interface {
	// SendBatch sends a batch of queries to be applied atomically.
	// The gateway itself is read-only; this is used to set up fixtures.
	SendBatch(ctx context.Context, batch *QueryBatch) error

	// Query submits a query to fetch data from target storage.
	Query(ctx context.Context, sql string, args ...interface{}) (QueryResults, error)

	// QueryRow submits a query to fetch a single row of data from target storage.
	QueryRow(ctx context.Context, sql string, args ...interface{}) QueryResult

	// Close shuts down the storage and releases its connections.
	Close()

	// Name returns the name of the target storage.
	Name() string
}
