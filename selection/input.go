package selection

import (
	"errors"
	"fmt"
)

// ErrEmptyName is returned for a selection without a name.
var ErrEmptyName = errors.New("name must not be empty")

// EventDataInput is the projection part of an event-level selection input.
// A nil Extrinsic or Call means the owning record is not pulled in.
type EventDataInput struct {
	Event     *EventFields     `json:"event"`
	Extrinsic *ExtrinsicFields `json:"extrinsic"`
	Call      *CallFields      `json:"call"`
}

// CallDataInput is the projection part of a call-level selection input.
type CallDataInput struct {
	Call      *CallFields      `json:"call"`
	Extrinsic *ExtrinsicFields `json:"extrinsic"`
}

type EventSelectionInput struct {
	Name string          `json:"name" validate:"required"`
	Data *EventDataInput `json:"data"`
}

type CallSelectionInput struct {
	Name string         `json:"name" validate:"required"`
	Data *CallDataInput `json:"data"`
}

type EvmLogSelectionInput struct {
	Contract string          `json:"contract" validate:"required"`
	Filter   [][]string      `json:"filter" validate:"max=4"`
	Data     *EventDataInput `json:"data"`
}

type EthTransactSelectionInput struct {
	Contract string         `json:"contract" validate:"required"`
	Sighash  *string        `json:"sighash"`
	Data     *CallDataInput `json:"data"`
}

type ContractsEventSelectionInput struct {
	Contract string          `json:"contract" validate:"required"`
	Data     *EventDataInput `json:"data"`
}

// eventData resolves the projections of an event-level input. Without a data
// block everything is selected, including the owning extrinsic and call.
func eventData(d *EventDataInput) (EventFields, *ExtrinsicFields, *CallFields) {
	if d == nil {
		x, c := DefaultExtrinsicFields, DefaultCallFields
		return DefaultEventFields, &x, &c
	}
	event := DefaultEventFields
	if d.Event != nil {
		event = *d.Event
	}
	var x *ExtrinsicFields
	if d.Extrinsic != nil {
		v := *d.Extrinsic
		x = &v
	}
	var c *CallFields
	if d.Call != nil {
		v := *d.Call
		c = &v
	}
	return event, x, c
}

// callData resolves the projections of a call-level input.
func callData(d *CallDataInput) (CallFields, ExtrinsicFields) {
	call, x := DefaultCallFields, DefaultExtrinsicFields
	if d == nil {
		return call, x
	}
	if d.Call != nil {
		call = *d.Call
	}
	if d.Extrinsic != nil {
		x = *d.Extrinsic
	}
	return call, x
}

// FromEventInputs converts event selection inputs.
func FromEventInputs(in []EventSelectionInput) ([]EventSelection, error) {
	out := make([]EventSelection, 0, len(in))
	for i, s := range in {
		if s.Name == "" {
			return nil, fmt.Errorf("[%d].name: %w", i, ErrEmptyName)
		}
		event, x, c := eventData(s.Data)
		out = append(out, EventSelection{Name: s.Name, Event: event, Extrinsic: x, Call: c})
	}
	return out, nil
}

// FromCallInputs converts call selection inputs.
func FromCallInputs(in []CallSelectionInput) ([]CallSelection, error) {
	out := make([]CallSelection, 0, len(in))
	for i, s := range in {
		if s.Name == "" {
			return nil, fmt.Errorf("[%d].name: %w", i, ErrEmptyName)
		}
		call, x := callData(s.Data)
		out = append(out, CallSelection{Name: s.Name, Call: call, Extrinsic: x})
	}
	return out, nil
}

// FromEvmLogInputs converts EVM log selection inputs, normalizing the
// contract address and topics.
func FromEvmLogInputs(in []EvmLogSelectionInput) ([]EvmLogSelection, error) {
	out := make([]EvmLogSelection, 0, len(in))
	for i, s := range in {
		contract, err := NormalizeEvmAddress(s.Contract)
		if err != nil {
			return nil, fmt.Errorf("[%d].contract: %w", i, err)
		}
		if len(s.Filter) > MaxTopics {
			return nil, fmt.Errorf("[%d].filter: %w", i, ErrTooManyTopics)
		}
		topics := make([][]string, len(s.Filter))
		for j, accepted := range s.Filter {
			topics[j] = make([]string, 0, len(accepted))
			for _, topic := range accepted {
				normalized, err := NormalizeTopic(topic)
				if err != nil {
					return nil, fmt.Errorf("[%d].filter[%d]: %w", i, j, err)
				}
				topics[j] = append(topics[j], normalized)
			}
		}
		event, x, c := eventData(s.Data)
		out = append(out, EvmLogSelection{Contract: contract, Topics: topics, Event: event, Extrinsic: x, Call: c})
	}
	return out, nil
}

// FromEthTransactInputs converts Ethereum transaction selection inputs.
func FromEthTransactInputs(in []EthTransactSelectionInput) ([]EthTransactSelection, error) {
	out := make([]EthTransactSelection, 0, len(in))
	for i, s := range in {
		contract, err := NormalizeEvmAddress(s.Contract)
		if err != nil {
			return nil, fmt.Errorf("[%d].contract: %w", i, err)
		}
		var sighash *string
		if s.Sighash != nil {
			normalized, err := NormalizeSighash(*s.Sighash)
			if err != nil {
				return nil, fmt.Errorf("[%d].sighash: %w", i, err)
			}
			sighash = &normalized
		}
		call, x := callData(s.Data)
		out = append(out, EthTransactSelection{Contract: contract, Sighash: sighash, Call: call, Extrinsic: x})
	}
	return out, nil
}

// FromContractsEventInputs converts contract event selection inputs.
func FromContractsEventInputs(in []ContractsEventSelectionInput) ([]ContractsEventSelection, error) {
	out := make([]ContractsEventSelection, 0, len(in))
	for i, s := range in {
		contract, err := NormalizeContractAddress(s.Contract)
		if err != nil {
			return nil, fmt.Errorf("[%d].contract: %w", i, err)
		}
		event, x, c := eventData(s.Data)
		out = append(out, ContractsEventSelection{Contract: contract, Event: event, Extrinsic: x, Call: c})
	}
	return out, nil
}
