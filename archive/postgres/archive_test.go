package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/archive/memory"
	memtestutil "github.com/subsquid/archive-gateway/archive/memory/testutil"
	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/selection"
	"github.com/subsquid/archive-gateway/storage"
	"github.com/subsquid/archive-gateway/storage/postgres/testutil"
)

// row renders a record as a JSON object suitable for json_populate_record.
func row(p archive.Payload, fields ...archive.Field) string {
	for _, f := range fields {
		p = p.Set(f.Key, f.Value)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// loadFixture replaces the archive content with the memory fixture.
func loadFixture(t *testing.T, db storage.TargetStorage, data memory.Data) {
	batch := &storage.QueryBatch{}
	batch.Queue(`
		TRUNCATE block, extrinsic, call, event, frontier_evm_log,
			frontier_ethereum_transaction, contracts_contract_emitted, metadata CASCADE`)
	for _, b := range data.Blocks {
		batch.Queue(`
			INSERT INTO block (id, height, hash, parent_hash, timestamp, spec_id, validator)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, b.Height, b.Hash, b.ParentHash, b.Timestamp, b.SpecID, b.Validator,
		)
	}
	for _, x := range data.Extrinsics {
		batch.Queue(`INSERT INTO extrinsic SELECT * FROM json_populate_record(NULL::extrinsic, $1::json)`,
			row(x.Payload,
				archive.Field{Key: "id", Value: archive.String(x.ID)},
				archive.Field{Key: "block_id", Value: archive.String(string(x.BlockID))},
			),
		)
	}
	for i, c := range data.Calls {
		batch.Queue(`INSERT INTO call SELECT * FROM json_populate_record(NULL::call, $1::json)`,
			row(c.Payload,
				archive.Field{Key: "id", Value: archive.String(c.ID)},
				archive.Field{Key: "block_id", Value: archive.String(string(c.BlockID))},
				archive.Field{Key: "extrinsic_id", Value: archive.String(c.ExtrinsicID)},
				archive.Field{Key: "parent_id", Value: archive.OptionalString(c.ParentID)},
				archive.Field{Key: "pos", Value: archive.Number(int64(i))},
			),
		)
		if c.EthContract != "" {
			batch.Queue(`INSERT INTO frontier_ethereum_transaction (call_id, contract, sighash) VALUES ($1, $2, $3)`,
				c.ID, c.EthContract, c.EthSighash,
			)
		}
	}
	for _, e := range data.Events {
		batch.Queue(`INSERT INTO event SELECT * FROM json_populate_record(NULL::event, $1::json)`,
			row(e.Payload,
				archive.Field{Key: "id", Value: archive.String(e.ID)},
				archive.Field{Key: "block_id", Value: archive.String(string(e.BlockID))},
				archive.Field{Key: "extrinsic_id", Value: archive.OptionalString(e.ExtrinsicID)},
				archive.Field{Key: "call_id", Value: archive.OptionalString(e.CallID)},
			),
		)
		switch e.Name {
		case selection.EvmLogEvent:
			topics := make([]*string, 4)
			for i := range e.Topics {
				topics[i] = &e.Topics[i]
			}
			batch.Queue(`
				INSERT INTO frontier_evm_log (event_id, contract, topic0, topic1, topic2, topic3)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				e.ID, e.Contract, topics[0], topics[1], topics[2], topics[3],
			)
		case selection.ContractEmittedEvent:
			batch.Queue(`INSERT INTO contracts_contract_emitted (event_id, contract) VALUES ($1, $2)`,
				e.ID, e.Contract,
			)
		}
	}
	for _, m := range data.Metadata {
		batch.Queue(`
			INSERT INTO metadata (id, spec_name, spec_version, block_height, block_hash, hex)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.SpecName, m.SpecVersion, m.BlockHeight, m.BlockHash, m.Hex,
		)
	}
	require.Nil(t, db.SendBatch(context.Background(), batch))
}

func newTestArchives(t *testing.T) (*Archive, *memory.Archive) {
	testutil.Migrate(t, "file://../../storage/migrations")
	client := testutil.NewTestClient(t)
	data := memtestutil.Fixture()
	loadFixture(t, client, data)

	logger, err := log.NewLogger("archive-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.Nil(t, err)
	return New(client, logger), memory.New(data)
}

func requireSameJSON(t *testing.T, expected, actual interface{}) {
	e, err := json.Marshal(expected)
	require.Nil(t, err)
	a, err := json.Marshal(actual)
	require.Nil(t, err)
	require.JSONEq(t, string(e), string(a))
}

func heights(blocks []archive.Block) []int64 {
	out := make([]int64, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Header.Height)
	}
	return out
}

// TestMatchesMemoryArchive checks the SQL rendition of every selection kind
// against the in-memory reference.
func TestMatchesMemoryArchive(t *testing.T) {
	pg, mem := newTestArchives(t)
	ctx := context.Background()
	sighash := memtestutil.TransferSighash
	callFields := selection.CallFields{Args: true}

	for name, set := range map[string]*selection.Set{
		"calls": {Calls: []selection.CallSelection{
			{Name: "Balances.transfer", Call: selection.DefaultCallFields, Extrinsic: selection.ExtrinsicFields{Hash: true}},
			{Name: "System.remark"},
		}},
		"call events": {
			Calls:             []selection.CallSelection{{Name: "Balances.transfer"}},
			IncludeCallEvents: true,
		},
		"events": {Events: []selection.EventSelection{
			{Name: "Balances.Transfer", Event: selection.DefaultEventFields, Call: &callFields},
		}},
		"evm": {
			EvmLogs: []selection.EvmLogSelection{{
				Contract:  memtestutil.ERC20,
				Topics:    [][]string{{memtestutil.TransferTopic}},
				Event:     selection.EventFields{Args: true},
				Extrinsic: &selection.DefaultExtrinsicFields,
			}},
			EthTransactions: []selection.EthTransactSelection{{Contract: memtestutil.ERC20, Sighash: &sighash}},
		},
		"contracts": {ContractsEvents: []selection.ContractsEventSelection{{
			Contract: memtestutil.InkContract,
			Event:    selection.DefaultEventFields,
		}}},
	} {
		r := archive.BlockRange{From: 0, Limit: 50}
		pgBlocks, err := pg.Blocks(ctx, r, set)
		require.Nil(t, err, name)
		memBlocks, err := mem.Blocks(ctx, r, set)
		require.Nil(t, err, name)
		require.Equal(t, heights(memBlocks), heights(pgBlocks), name)
		require.NotEmpty(t, pgBlocks, name)

		ids := make([]archive.BlockID, 0, len(pgBlocks))
		for _, b := range pgBlocks {
			require.Equal(t, b.Header.ID, memtestutil.BlockID(b.Header.Height), name)
			ids = append(ids, b.Header.ID)
		}

		pgX, err := pg.Extrinsics(ctx, ids, set)
		require.Nil(t, err, name)
		memX, err := mem.Extrinsics(ctx, ids, set)
		require.Nil(t, err, name)
		requireSameJSON(t, memX, pgX)

		pgC, err := pg.Calls(ctx, ids, set)
		require.Nil(t, err, name)
		memC, err := mem.Calls(ctx, ids, set)
		require.Nil(t, err, name)
		requireSameJSON(t, memC, pgC)

		pgE, err := pg.Events(ctx, ids, set)
		require.Nil(t, err, name)
		memE, err := mem.Events(ctx, ids, set)
		require.Nil(t, err, name)
		requireSameJSON(t, memE, pgE)
	}
}

func TestIncludeAllBlocks(t *testing.T) {
	pg, _ := newTestArchives(t)
	to := int64(104)
	blocks, err := pg.Blocks(context.Background(), archive.BlockRange{From: 100, To: &to, Limit: 10, IncludeAll: true}, &selection.Set{})
	require.Nil(t, err)
	require.Equal(t, []int64{100, 101, 102, 103, 104}, heights(blocks))
}

func TestMetadataAndStatus(t *testing.T) {
	pg, mem := newTestArchives(t)
	ctx := context.Background()

	pgMeta, err := pg.Metadata(ctx)
	require.Nil(t, err)
	memMeta, err := mem.Metadata(ctx)
	require.Nil(t, err)
	require.Equal(t, memMeta, pgMeta)

	m, err := pg.MetadataByID(ctx, "polkadot@9110")
	require.Nil(t, err)
	require.Equal(t, &memMeta[1], m)

	m, err = pg.MetadataByID(ctx, "unknown-id")
	require.Nil(t, err)
	require.Nil(t, m)

	s, err := pg.Status(ctx)
	require.Nil(t, err)
	require.EqualValues(t, memtestutil.BlockCount-1, s.Head)
}
