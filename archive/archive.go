// Package archive defines the storage collaborator of the gateway: the
// records it returns and the narrow interface it implements.
package archive

import (
	"context"
	"time"

	"github.com/subsquid/archive-gateway/selection"
)

// BlockID is the opaque key of a block. Extrinsics, calls and events are
// grouped by it.
type BlockID string

// BlockHeader is the block metadata returned with every batch.
type BlockHeader struct {
	ID         BlockID   `json:"id"`
	Height     int64     `json:"height"`
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parentHash"`
	Timestamp  time.Time `json:"timestamp"`
	SpecID     string    `json:"specId"`
	Validator  *string   `json:"validator"`
}

// Block is a block in a ranged fetch. Nested is set when the archive
// already resolved the block's records in the same round trip.
type Block struct {
	Header BlockHeader
	Nested *Nested
}

// Nested holds the records of one block.
type Nested struct {
	Extrinsics []Extrinsic
	Calls      []Call
	Events     []Event
}

// Extrinsic is a top-level transaction of a block.
type Extrinsic struct {
	ID      string
	BlockID BlockID
	Payload Payload
}

// MarshalJSON writes the structural fields followed by the payload.
func (x Extrinsic) MarshalJSON() ([]byte, error) {
	return marshalRecord(x.Payload,
		Field{"id", String(x.ID)},
		Field{"blockId", String(string(x.BlockID))},
	)
}

// Call is an invocation within an extrinsic.
type Call struct {
	ID          string
	BlockID     BlockID
	ExtrinsicID string
	ParentID    *string
	Payload     Payload
}

// MarshalJSON writes the structural fields followed by the payload.
func (c Call) MarshalJSON() ([]byte, error) {
	return marshalRecord(c.Payload,
		Field{"id", String(c.ID)},
		Field{"blockId", String(string(c.BlockID))},
		Field{"extrinsicId", String(c.ExtrinsicID)},
		Field{"parentId", OptionalString(c.ParentID)},
	)
}

// Event is a side-effect record emitted during block execution.
type Event struct {
	ID          string
	BlockID     BlockID
	ExtrinsicID *string
	CallID      *string
	Payload     Payload
}

// MarshalJSON writes the structural fields followed by the payload.
func (e Event) MarshalJSON() ([]byte, error) {
	return marshalRecord(e.Payload,
		Field{"id", String(e.ID)},
		Field{"blockId", String(string(e.BlockID))},
		Field{"extrinsicId", OptionalString(e.ExtrinsicID)},
		Field{"callId", OptionalString(e.CallID)},
	)
}

// Metadata is a runtime metadata record.
type Metadata struct {
	ID          string `json:"id"`
	SpecName    string `json:"specName"`
	SpecVersion int    `json:"specVersion"`
	BlockHeight int64  `json:"blockHeight"`
	BlockHash   string `json:"blockHash"`
	Hex         string `json:"hex"`
}

// Status is the indexing status of the archive.
type Status struct {
	// Head is the height of the highest indexed block, -1 if none.
	Head int64 `json:"head"`
}

// BlockRange bounds a ranged block fetch.
type BlockRange struct {
	// From is the inclusive lower height bound.
	From int64
	// To is the optional inclusive upper height bound.
	To *int64
	// Limit caps the number of blocks returned.
	Limit int
	// IncludeAll returns blocks without any matching record too.
	IncludeAll bool
}

// Contains reports whether the height lies within the range bounds.
func (r BlockRange) Contains(height int64) bool {
	if height < r.From {
		return false
	}
	return r.To == nil || height <= *r.To
}

// Archive is the storage collaborator of the gateway.
//
// Implementations apply the selection set to every method: Blocks returns
// blocks with at least one matching record unless r.IncludeAll is set, and
// Extrinsics, Calls and Events return only the matching records of the given
// blocks, including the ones pulled in by related selections. Records are
// returned in storage order within a block.
type Archive interface {
	Blocks(ctx context.Context, r BlockRange, set *selection.Set) ([]Block, error)
	Extrinsics(ctx context.Context, blocks []BlockID, set *selection.Set) ([]Extrinsic, error)
	Calls(ctx context.Context, blocks []BlockID, set *selection.Set) ([]Call, error)
	Events(ctx context.Context, blocks []BlockID, set *selection.Set) ([]Event, error)

	Metadata(ctx context.Context) ([]Metadata, error)
	// MetadataByID returns nil, nil for an unknown id.
	MetadataByID(ctx context.Context, id string) (*Metadata, error)
	Status(ctx context.Context) (*Status, error)
}
