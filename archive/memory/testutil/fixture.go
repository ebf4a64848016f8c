// Package testutil provides a sample substrate archive for tests.
package testutil

import (
	"fmt"
	"time"

	"github.com/subsquid/archive-gateway/archive"
	"github.com/subsquid/archive-gateway/archive/memory"
	"github.com/subsquid/archive-gateway/selection"
)

const (
	// BlockCount is the number of blocks of the fixture, at heights 0..BlockCount-1.
	BlockCount = 120

	// ERC20 is the EVM contract called in EvmBlock.
	ERC20 = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	// TransferTopic is the topic0 of the ERC20 Transfer log.
	TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	// TransferSighash is the selector of ERC20 transfer(address,uint256).
	TransferSighash = "0xa9059cbb"
	// InkContract is the ink! contract called in ContractsBlock.
	InkContract = "0x8a2f4c5d1e6b7a8c9d0e1f2a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e"

	// EvmBlock holds an Ethereum.transact call emitting an EVM log.
	EvmBlock = 5
	// ContractsBlock holds a Contracts.call emitting a contract event.
	ContractsBlock = 9
)

// BlockID returns the id of the fixture block at the height.
func BlockID(height int64) archive.BlockID {
	return archive.BlockID(fmt.Sprintf("%010d-%05x", height, height*7919%0xfffff))
}

// HasTransfer reports whether the fixture block at the height holds a
// Balances.transfer call.
func HasTransfer(height int64) bool {
	return height%10 == 3
}

// HasRemark reports whether the fixture block at the height holds a
// System.remark call.
func HasRemark(height int64) bool {
	return height%10 == 7
}

type blockBuilder struct {
	data   *memory.Data
	id     archive.BlockID
	events int
}

// extrinsic adds an extrinsic with its root call and the events the call
// emitted. It returns the index of the call in data.Calls and of the first
// event in data.Events.
func (b *blockBuilder) extrinsic(idx int, call string, events ...string) (int, int) {
	id := fmt.Sprintf("%s-%06d", b.id, idx)
	b.data.Extrinsics = append(b.data.Extrinsics, archive.Extrinsic{
		ID:      id,
		BlockID: b.id,
		Payload: archive.Payload{
			{Key: "index_in_block", Value: archive.Number(int64(idx))},
			{Key: "version", Value: archive.Number(4)},
			{Key: "signature", Value: archive.Null()},
			{Key: "success", Value: archive.Bool(true)},
			{Key: "error", Value: archive.Null()},
			{Key: "hash", Value: archive.String(fmt.Sprintf("0x%064x", len(b.data.Extrinsics)))},
			{Key: "fee", Value: archive.Number(125000000)},
			{Key: "tip", Value: archive.Number(0)},
		},
	})
	b.data.Calls = append(b.data.Calls, memory.Call{
		Call: archive.Call{
			ID:          id,
			BlockID:     b.id,
			ExtrinsicID: id,
			Payload: archive.Payload{
				{Key: "name", Value: archive.String(call)},
				{Key: "success", Value: archive.Bool(true)},
				{Key: "error", Value: archive.Null()},
				{Key: "origin", Value: archive.NestedValue([]byte(`{"__kind":"system","value":{"__kind":"Root"}}`))},
				{Key: "args", Value: archive.NestedValue([]byte(`{"call_index":"0x0000"}`))},
			},
		},
		Name: call,
	})
	callIdx, eventIdx := len(b.data.Calls)-1, len(b.data.Events)
	for _, name := range events {
		extrinsicID, callID := id, id
		b.data.Events = append(b.data.Events, memory.Event{
			Event: archive.Event{
				ID:          fmt.Sprintf("%s-%06d", b.id, 1000+b.events),
				BlockID:     b.id,
				ExtrinsicID: &extrinsicID,
				CallID:      &callID,
				Payload: archive.Payload{
					{Key: "name", Value: archive.String(name)},
					{Key: "index_in_block", Value: archive.Number(int64(b.events))},
					{Key: "phase", Value: archive.String("ApplyExtrinsic")},
					{Key: "args", Value: archive.NestedValue([]byte(`{"dispatch_info":{"weight":0}}`))},
				},
			},
			Name: name,
		})
		b.events++
	}
	return callIdx, eventIdx
}

// Fixture returns the sample archive content. Every block holds a
// Timestamp.set extrinsic; some hold balance transfers, remarks, EVM and
// ink! contract activity.
func Fixture() memory.Data {
	var d memory.Data
	for h := int64(0); h < BlockCount; h++ {
		id := BlockID(h)
		var parent string
		if h > 0 {
			parent = string(BlockID(h - 1))
		}
		d.Blocks = append(d.Blocks, archive.BlockHeader{
			ID:         id,
			Height:     h,
			Hash:       "0x" + string(id),
			ParentHash: "0x" + parent,
			Timestamp:  time.Unix(1_600_000_000+h*6, 0).UTC(),
			SpecID:     "polkadot@9110",
		})

		b := &blockBuilder{data: &d, id: id}
		b.extrinsic(0, "Timestamp.set", "System.ExtrinsicSuccess")
		switch {
		case HasTransfer(h):
			b.extrinsic(1, "Balances.transfer", "Balances.Transfer", "System.ExtrinsicSuccess")
		case HasRemark(h):
			b.extrinsic(1, "System.remark", "System.ExtrinsicSuccess")
		case h == EvmBlock:
			c, e := b.extrinsic(1, selection.EthTransactCall, selection.EvmLogEvent, "System.ExtrinsicSuccess")
			d.Calls[c].EthContract = ERC20
			d.Calls[c].EthSighash = TransferSighash
			d.Events[e].Contract = ERC20
			d.Events[e].Topics = []string{TransferTopic}
		case h == ContractsBlock:
			_, e := b.extrinsic(1, "Contracts.call", selection.ContractEmittedEvent, "System.ExtrinsicSuccess")
			d.Events[e].Contract = InkContract
		}
	}
	d.Metadata = []archive.Metadata{
		{ID: "polkadot@0", SpecName: "polkadot", SpecVersion: 0, BlockHeight: 0, BlockHash: "0x" + string(BlockID(0)), Hex: "0x6d657461"},
		{ID: "polkadot@9110", SpecName: "polkadot", SpecVersion: 9110, BlockHeight: 60, BlockHash: "0x" + string(BlockID(60)), Hex: "0x6d657462"},
	}
	return d
}
