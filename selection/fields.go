package selection

// ExtrinsicFields is the projection of extrinsic payload fields.
type ExtrinsicFields struct {
	IndexInBlock bool `json:"indexInBlock"`
	Version      bool `json:"version"`
	Signature    bool `json:"signature"`
	Success      bool `json:"success"`
	Error        bool `json:"error"`
	Hash         bool `json:"hash"`
	Fee          bool `json:"fee"`
	Tip          bool `json:"tip"`
}

// DefaultExtrinsicFields selects every extrinsic field.
var DefaultExtrinsicFields = ExtrinsicFields{
	IndexInBlock: true,
	Version:      true,
	Signature:    true,
	Success:      true,
	Error:        true,
	Hash:         true,
	Fee:          true,
	Tip:          true,
}

// Union returns the fields selected by either projection.
func (f ExtrinsicFields) Union(o ExtrinsicFields) ExtrinsicFields {
	return ExtrinsicFields{
		IndexInBlock: f.IndexInBlock || o.IndexInBlock,
		Version:      f.Version || o.Version,
		Signature:    f.Signature || o.Signature,
		Success:      f.Success || o.Success,
		Error:        f.Error || o.Error,
		Hash:         f.Hash || o.Hash,
		Fee:          f.Fee || o.Fee,
		Tip:          f.Tip || o.Tip,
	}
}

// Columns returns the storage names of the selected fields.
func (f ExtrinsicFields) Columns() []string {
	return columns(
		column{f.IndexInBlock, "index_in_block"},
		column{f.Version, "version"},
		column{f.Signature, "signature"},
		column{f.Success, "success"},
		column{f.Error, "error"},
		column{f.Hash, "hash"},
		column{f.Fee, "fee"},
		column{f.Tip, "tip"},
	)
}

// CallFields is the projection of call payload fields. The call name is
// always selected.
type CallFields struct {
	Success bool `json:"success"`
	Error   bool `json:"error"`
	Origin  bool `json:"origin"`
	Args    bool `json:"args"`
}

// DefaultCallFields selects every call field.
var DefaultCallFields = CallFields{
	Success: true,
	Error:   true,
	Origin:  true,
	Args:    true,
}

// Union returns the fields selected by either projection.
func (f CallFields) Union(o CallFields) CallFields {
	return CallFields{
		Success: f.Success || o.Success,
		Error:   f.Error || o.Error,
		Origin:  f.Origin || o.Origin,
		Args:    f.Args || o.Args,
	}
}

// Columns returns the storage names of the selected fields.
func (f CallFields) Columns() []string {
	return columns(
		column{true, "name"},
		column{f.Success, "success"},
		column{f.Error, "error"},
		column{f.Origin, "origin"},
		column{f.Args, "args"},
	)
}

// EventFields is the projection of event payload fields. The event name is
// always selected.
type EventFields struct {
	IndexInBlock bool `json:"indexInBlock"`
	Phase        bool `json:"phase"`
	Args         bool `json:"args"`
}

// DefaultEventFields selects every event field.
var DefaultEventFields = EventFields{
	IndexInBlock: true,
	Phase:        true,
	Args:         true,
}

// Union returns the fields selected by either projection.
func (f EventFields) Union(o EventFields) EventFields {
	return EventFields{
		IndexInBlock: f.IndexInBlock || o.IndexInBlock,
		Phase:        f.Phase || o.Phase,
		Args:         f.Args || o.Args,
	}
}

// Columns returns the storage names of the selected fields.
func (f EventFields) Columns() []string {
	return columns(
		column{true, "name"},
		column{f.IndexInBlock, "index_in_block"},
		column{f.Phase, "phase"},
		column{f.Args, "args"},
	)
}

type column struct {
	selected bool
	name     string
}

func columns(cs ...column) []string {
	cols := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.selected {
			cols = append(cols, c.name)
		}
	}
	return cols
}
