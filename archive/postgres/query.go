package postgres

import (
	"fmt"
	"strings"

	"github.com/subsquid/archive-gateway/selection"
)

// query accumulates positional arguments while SQL text is assembled.
type query struct {
	args []interface{}
}

func (q *query) arg(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func or(conds []string) string {
	if len(conds) == 0 {
		return "FALSE"
	}
	return "(" + strings.Join(conds, " OR ") + ")"
}

// jsonObject renders a json_build_object over the columns of the alias. json
// keeps the key order, unlike jsonb.
func jsonObject(alias string, cols []string) string {
	parts := make([]string, 0, 2*len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf("'%s', %s.%s", c, alias, c))
	}
	return "json_build_object(" + strings.Join(parts, ", ") + ")::text"
}

// nameCond matches the name column of the alias against selection names.
func (q *query) nameCond(alias string, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	for _, n := range names {
		if n == selection.Wildcard {
			return []string{"TRUE"}
		}
	}
	return []string{fmt.Sprintf("%s.name = ANY(%s::text[])", alias, q.arg(names))}
}

// callCond renders the call-level selections over the call alias `c`.
func (q *query) callCond(set *selection.Set) string {
	names := make([]string, 0, len(set.Calls))
	for _, s := range set.Calls {
		names = append(names, s.Name)
	}
	conds := q.nameCond("c", names)
	for _, s := range set.EthTransactions {
		cond := fmt.Sprintf("c.name = %s AND t.contract = %s", q.arg(selection.EthTransactCall), q.arg(s.Contract))
		if s.Sighash != nil {
			cond += fmt.Sprintf(" AND t.sighash = %s", q.arg(*s.Sighash))
		}
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM frontier_ethereum_transaction t WHERE t.call_id = c.id AND %s)", cond,
		))
	}
	return or(conds)
}

// eventFilter picks the event-level selections taking part in a condition by
// their extrinsic and call projections.
type eventFilter func(x *selection.ExtrinsicFields, c *selection.CallFields) bool

func anyEvent(*selection.ExtrinsicFields, *selection.CallFields) bool { return true }

func withExtrinsic(x *selection.ExtrinsicFields, _ *selection.CallFields) bool { return x != nil }

func withCall(_ *selection.ExtrinsicFields, c *selection.CallFields) bool { return c != nil }

// eventCond renders the event-level selections accepted by the filter over
// the event alias `e`.
func (q *query) eventCond(set *selection.Set, filter eventFilter) string {
	var names []string
	for _, s := range set.Events {
		if filter(s.Extrinsic, s.Call) {
			names = append(names, s.Name)
		}
	}
	conds := q.nameCond("e", names)
	for _, s := range set.EvmLogs {
		if !filter(s.Extrinsic, s.Call) {
			continue
		}
		cond := fmt.Sprintf("e.name = %s AND l.contract = %s", q.arg(selection.EvmLogEvent), q.arg(s.Contract))
		for i, topics := range s.Topics {
			if len(topics) == 0 {
				continue
			}
			cond += fmt.Sprintf(" AND l.topic%d = ANY(%s::text[])", i, q.arg(topics))
		}
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM frontier_evm_log l WHERE l.event_id = e.id AND %s)", cond,
		))
	}
	for _, s := range set.ContractsEvents {
		if !filter(s.Extrinsic, s.Call) {
			continue
		}
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM contracts_contract_emitted ce WHERE ce.event_id = e.id AND e.name = %s AND ce.contract = %s)",
			q.arg(selection.ContractEmittedEvent), q.arg(s.Contract),
		))
	}
	return or(conds)
}

// blocksQuery selects the headers of the blocks in range, restricted to blocks
// with matching records unless r.IncludeAll.
func blocksQuery(from int64, to *int64, limit int, includeAll bool, set *selection.Set) (string, []interface{}) {
	q := &query{}
	var sb strings.Builder
	sb.WriteString(`
		SELECT b.id, b.height, b.hash, b.parent_hash, b.timestamp, b.spec_id, b.validator
		FROM block b
		WHERE b.height >= ` + q.arg(from))
	if to != nil {
		sb.WriteString(" AND b.height <= " + q.arg(*to))
	}
	if !includeAll {
		fmt.Fprintf(&sb, `
			AND (
				EXISTS (SELECT 1 FROM call c WHERE c.block_id = b.id AND %s)
				OR EXISTS (SELECT 1 FROM event e WHERE e.block_id = b.id AND %s)
			)`, q.callCond(set), q.eventCond(set, anyEvent))
	}
	sb.WriteString(`
		ORDER BY b.height
		LIMIT ` + q.arg(limit))
	return sb.String(), q.args
}

// extrinsicsQuery selects the extrinsics of the blocks owning a matched call,
// or a matched event whose selection asks for the extrinsic.
func extrinsicsQuery(blocks []string, set *selection.Set) (string, []interface{}) {
	q := &query{}
	sql := fmt.Sprintf(`
		SELECT x.id, x.block_id, %s
		FROM extrinsic x
		WHERE x.block_id = ANY(%s::text[])
			AND (
				EXISTS (SELECT 1 FROM call c WHERE c.extrinsic_id = x.id AND %s)
				OR EXISTS (SELECT 1 FROM event e WHERE e.extrinsic_id = x.id AND %s)
			)
		ORDER BY x.block_id, x.index_in_block`,
		jsonObject("x", set.ExtrinsicProjection().Columns()),
		q.arg(blocks),
		q.callCond(set),
		q.eventCond(set, withExtrinsic),
	)
	return sql, q.args
}

// callsQuery selects the matched calls of the blocks, and the calls owning a
// matched event whose selection asks for the call.
func callsQuery(blocks []string, set *selection.Set) (string, []interface{}) {
	q := &query{}
	sql := fmt.Sprintf(`
		SELECT c.id, c.block_id, c.extrinsic_id, c.parent_id, %s
		FROM call c
		WHERE c.block_id = ANY(%s::text[])
			AND (
				%s
				OR EXISTS (SELECT 1 FROM event e WHERE e.call_id = c.id AND %s)
			)
		ORDER BY c.block_id, c.pos`,
		jsonObject("c", set.CallProjection().Columns()),
		q.arg(blocks),
		q.callCond(set),
		q.eventCond(set, withCall),
	)
	return sql, q.args
}

// eventsQuery selects the matched events of the blocks and, with
// IncludeCallEvents, the events emitted by matched calls.
func eventsQuery(blocks []string, set *selection.Set) (string, []interface{}) {
	q := &query{}
	fromCalls := "FALSE"
	if set.IncludeCallEvents {
		fromCalls = fmt.Sprintf("EXISTS (SELECT 1 FROM call c WHERE c.id = e.call_id AND %s)", q.callCond(set))
	}
	sql := fmt.Sprintf(`
		SELECT e.id, e.block_id, e.extrinsic_id, e.call_id, %s
		FROM event e
		WHERE e.block_id = ANY(%s::text[])
			AND (
				%s
				OR %s
			)
		ORDER BY e.block_id, e.index_in_block`,
		jsonObject("e", set.EventProjection().Columns()),
		q.arg(blocks),
		q.eventCond(set, anyEvent),
		fromCalls,
	)
	return sql, q.args
}
