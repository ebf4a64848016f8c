package selection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	erc20      = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	erc20Lower = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	transfer   = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	approval   = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"
)

func TestDefaultsWithoutData(t *testing.T) {
	events, err := FromEventInputs([]EventSelectionInput{{Name: "Balances.Transfer"}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, DefaultEventFields, events[0].Event)
	require.Equal(t, &DefaultExtrinsicFields, events[0].Extrinsic)
	require.Equal(t, &DefaultCallFields, events[0].Call)

	calls, err := FromCallInputs([]CallSelectionInput{{Name: "Balances.transfer"}})
	require.NoError(t, err)
	require.Equal(t, []CallSelection{{
		Name:      "Balances.transfer",
		Call:      DefaultCallFields,
		Extrinsic: DefaultExtrinsicFields,
	}}, calls)
}

func TestPartialData(t *testing.T) {
	events, err := FromEventInputs([]EventSelectionInput{{
		Name: "Balances.Transfer",
		Data: &EventDataInput{Event: &EventFields{Args: true}},
	}})
	require.NoError(t, err)
	require.Equal(t, EventFields{Args: true}, events[0].Event)
	require.Nil(t, events[0].Extrinsic)
	require.Nil(t, events[0].Call)

	calls, err := FromCallInputs([]CallSelectionInput{{
		Name: "Balances.transfer",
		Data: &CallDataInput{Call: &CallFields{Success: true}},
	}})
	require.NoError(t, err)
	require.Equal(t, CallFields{Success: true}, calls[0].Call)
	require.Equal(t, DefaultExtrinsicFields, calls[0].Extrinsic)
}

func TestConvertedSelectionsDoNotAliasInput(t *testing.T) {
	in := []EventSelectionInput{{
		Name: "System.Remark",
		Data: &EventDataInput{Extrinsic: &ExtrinsicFields{Hash: true}},
	}}
	events, err := FromEventInputs(in)
	require.NoError(t, err)

	in[0].Data.Extrinsic.Hash = false
	require.True(t, events[0].Extrinsic.Hash)
}

func TestEmptyName(t *testing.T) {
	_, err := FromCallInputs([]CallSelectionInput{{Name: "a"}, {Name: ""}})
	require.True(t, errors.Is(err, ErrEmptyName))
	require.Contains(t, err.Error(), "[1].name")
}

func TestEvmLogNormalization(t *testing.T) {
	logs, err := FromEvmLogInputs([]EvmLogSelectionInput{{
		Contract: erc20,
		Filter:   [][]string{{"0xDDF252AD1BE2C89B69C2B068FC378DAA952BA7F163C4A11628F55A4DF523B3EF"}, {}},
	}})
	require.NoError(t, err)
	require.Equal(t, erc20Lower, logs[0].Contract)
	require.Equal(t, [][]string{{transfer}, {}}, logs[0].Topics)

	for name, in := range map[string]EvmLogSelectionInput{
		"bad address":     {Contract: "0x1234"},
		"short topic":     {Contract: erc20, Filter: [][]string{{"0x1234"}}},
		"no hex prefix":   {Contract: erc20, Filter: [][]string{{transfer[2:]}}},
		"too many topics": {Contract: erc20, Filter: [][]string{{}, {}, {}, {}, {}}},
	} {
		_, err := FromEvmLogInputs([]EvmLogSelectionInput{in})
		require.Error(t, err, name)
	}
}

func TestEthTransactNormalization(t *testing.T) {
	sighash := "0xA9059CBB"
	txs, err := FromEthTransactInputs([]EthTransactSelectionInput{{Contract: erc20, Sighash: &sighash}})
	require.NoError(t, err)
	require.Equal(t, "0xa9059cbb", *txs[0].Sighash)

	bad := "0xa9059c"
	_, err = FromEthTransactInputs([]EthTransactSelectionInput{{Contract: erc20, Sighash: &bad}})
	require.Error(t, err)
}

func TestContractsEventNormalization(t *testing.T) {
	evs, err := FromContractsEventInputs([]ContractsEventSelectionInput{{Contract: "0x" + "AB" + transfer[4:]}})
	require.NoError(t, err)
	require.Equal(t, "0xab"+transfer[4:], evs[0].Contract)

	_, err = FromContractsEventInputs([]ContractsEventSelectionInput{{Contract: erc20}})
	require.True(t, errors.Is(err, ErrInvalidAddress))
}

func TestCallSelectionsAreOrCombined(t *testing.T) {
	set := Set{Calls: []CallSelection{{Name: "Balances.transfer"}, {Name: "System.remark"}}}
	require.True(t, set.MatchCall(CallRecord{Name: "Balances.transfer"}))
	require.True(t, set.MatchCall(CallRecord{Name: "System.remark"}))
	require.False(t, set.MatchCall(CallRecord{Name: "Timestamp.set"}))

	wildcard := Set{Calls: []CallSelection{{Name: Wildcard}}}
	require.True(t, wildcard.MatchCall(CallRecord{Name: "Timestamp.set"}))

	require.False(t, (&Set{}).MatchCall(CallRecord{Name: "Balances.transfer"}))
}

func TestEthTransactMatching(t *testing.T) {
	sighash := "0xa9059cbb"
	set := Set{EthTransactions: []EthTransactSelection{{Contract: erc20Lower, Sighash: &sighash}}}
	require.True(t, set.MatchCall(CallRecord{Name: EthTransactCall, EthContract: erc20Lower, EthSighash: sighash}))
	require.False(t, set.MatchCall(CallRecord{Name: EthTransactCall, EthContract: erc20Lower, EthSighash: "0x095ea7b3"}))
	require.False(t, set.MatchCall(CallRecord{Name: "Balances.transfer", EthContract: erc20Lower, EthSighash: sighash}))

	set.EthTransactions[0].Sighash = nil
	require.True(t, set.MatchCall(CallRecord{Name: EthTransactCall, EthContract: erc20Lower, EthSighash: "0x095ea7b3"}))
}

func TestMatchEvent(t *testing.T) {
	x := DefaultExtrinsicFields
	set := Set{
		Events: []EventSelection{{Name: "Balances.Transfer", Extrinsic: &x}},
		EvmLogs: []EvmLogSelection{{
			Contract: erc20Lower,
			Topics:   [][]string{{transfer, approval}},
			Call:     &DefaultCallFields,
		}},
	}

	m := set.MatchEvent(EventRecord{Name: "Balances.Transfer"})
	require.Equal(t, EventMatch{Matched: true, Extrinsic: true}, m)

	m = set.MatchEvent(EventRecord{Name: EvmLogEvent, Contract: erc20Lower, Topics: []string{approval, "0x01"}})
	require.Equal(t, EventMatch{Matched: true, Call: true}, m)

	require.False(t, set.MatchEvent(EventRecord{Name: EvmLogEvent, Contract: erc20Lower}).Matched)
	require.False(t, set.MatchEvent(EventRecord{Name: EvmLogEvent, Contract: "0x00", Topics: []string{transfer}}).Matched)
	require.False(t, set.MatchEvent(EventRecord{Name: "System.ExtrinsicSuccess"}).Matched)
}

func TestContractsEventMatching(t *testing.T) {
	contract := "0x" + transfer[2:]
	set := Set{ContractsEvents: []ContractsEventSelection{{Contract: contract}}}
	require.True(t, set.MatchEvent(EventRecord{Name: ContractEmittedEvent, Contract: contract}).Matched)
	require.False(t, set.MatchEvent(EventRecord{Name: EvmLogEvent, Contract: contract}).Matched)
}

func TestValidate(t *testing.T) {
	set := Set{EvmLogs: []EvmLogSelection{{Contract: erc20Lower}}}
	err := set.Validate(Capabilities{Contracts: true})
	var ue *UnsupportedError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "evmLogs", ue.Field)
	require.NoError(t, set.Validate(Capabilities{EVM: true}))

	set = Set{ContractsEvents: []ContractsEventSelection{{}}}
	require.Error(t, set.Validate(Capabilities{EVM: true}))

	set = Set{EthTransactions: []EthTransactSelection{{}}}
	require.Error(t, set.Validate(Capabilities{}))

	require.NoError(t, (&Set{Calls: []CallSelection{{Name: "*"}}}).Validate(Capabilities{}))
}

func TestProjections(t *testing.T) {
	set := Set{
		Calls: []CallSelection{{Name: "a", Call: CallFields{Args: true}, Extrinsic: ExtrinsicFields{Hash: true}}},
		Events: []EventSelection{
			{Name: "b", Event: EventFields{Phase: true}, Extrinsic: &ExtrinsicFields{Fee: true}},
			{Name: "c", Event: EventFields{Args: true}, Call: &CallFields{Origin: true}},
		},
	}
	require.Equal(t, []string{"hash", "fee"}, set.ExtrinsicProjection().Columns())
	require.Equal(t, []string{"name", "origin", "args"}, set.CallProjection().Columns())
	require.Equal(t, []string{"name", "phase", "args"}, set.EventProjection().Columns())

	set.IncludeCallEvents = true
	require.Equal(t, DefaultEventFields, set.EventProjection())

	require.Empty(t, (&Set{}).ExtrinsicProjection().Columns())
	require.True(t, (&Set{IncludeCallEvents: true}).IsEmpty())
}
