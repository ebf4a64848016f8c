// Package selection implements the declarative filter and projection model
// of batch requests.
//
// Selections are values: they are built once per request by the From*Inputs
// converters and are never modified afterwards. Selections of the same kind
// are OR-combined, and a kind without selections matches nothing.
package selection

import (
	"fmt"
	"slices"
)

// Wildcard matches any event or call name.
const Wildcard = "*"

// Names of the events and calls targeted by the contract-aware selections.
const (
	EvmLogEvent          = "EVM.Log"
	EthTransactCall      = "Ethereum.transact"
	ContractEmittedEvent = "Contracts.ContractEmitted"
)

func matchName(pattern, name string) bool {
	return pattern == Wildcard || pattern == name
}

// EventSelection selects events by name. Extrinsic and Call, when set, pull
// in the extrinsic and call owning a matched event with that projection.
type EventSelection struct {
	Name      string
	Event     EventFields
	Extrinsic *ExtrinsicFields
	Call      *CallFields
}

// CallSelection selects calls by name. The owning extrinsic is always pulled
// in.
type CallSelection struct {
	Name      string
	Call      CallFields
	Extrinsic ExtrinsicFields
}

// EvmLogSelection selects EVM logs emitted by a contract. Topics[i] lists the
// accepted values of the i-th topic; an empty position accepts any value.
type EvmLogSelection struct {
	Contract  string
	Topics    [][]string
	Event     EventFields
	Extrinsic *ExtrinsicFields
	Call      *CallFields
}

// EthTransactSelection selects Ethereum transactions sent to a contract,
// optionally narrowed by the 4-byte function selector.
type EthTransactSelection struct {
	Contract  string
	Sighash   *string
	Call      CallFields
	Extrinsic ExtrinsicFields
}

// ContractsEventSelection selects ink! contract events emitted by a contract.
type ContractsEventSelection struct {
	Contract  string
	Event     EventFields
	Extrinsic *ExtrinsicFields
	Call      *CallFields
}

// CallRecord is the part of a call the selections match on.
type CallRecord struct {
	Name string
	// EthContract and EthSighash are set for Ethereum.transact calls.
	EthContract string
	EthSighash  string
}

// EventRecord is the part of an event the selections match on.
type EventRecord struct {
	Name string
	// Contract is the emitting contract of EVM logs and contract events.
	Contract string
	// Topics are the EVM log topics.
	Topics []string
}

// Matches reports whether the call matches the selection.
func (s *CallSelection) Matches(c CallRecord) bool {
	return matchName(s.Name, c.Name)
}

// Matches reports whether the call matches the selection.
func (s *EthTransactSelection) Matches(c CallRecord) bool {
	if c.Name != EthTransactCall || c.EthContract != s.Contract {
		return false
	}
	return s.Sighash == nil || *s.Sighash == c.EthSighash
}

// Matches reports whether the event matches the selection.
func (s *EventSelection) Matches(e EventRecord) bool {
	return matchName(s.Name, e.Name)
}

// Matches reports whether the event matches the selection.
func (s *EvmLogSelection) Matches(e EventRecord) bool {
	if e.Name != EvmLogEvent || e.Contract != s.Contract {
		return false
	}
	for i, accepted := range s.Topics {
		if len(accepted) == 0 {
			continue
		}
		if i >= len(e.Topics) || !slices.Contains(accepted, e.Topics[i]) {
			return false
		}
	}
	return true
}

// Matches reports whether the event matches the selection.
func (s *ContractsEventSelection) Matches(e EventRecord) bool {
	return e.Name == ContractEmittedEvent && e.Contract == s.Contract
}

// Capabilities are the deployment-level switches of the gated selection kinds.
type Capabilities struct {
	EVM       bool `json:"evm"`
	Contracts bool `json:"contracts"`
}

// UnsupportedError is returned for a selection kind the deployment does not
// support.
type UnsupportedError struct {
	Field      string
	Capability string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %s support is not enabled", e.Field, e.Capability)
}

// Set is the full selection of one batch request.
type Set struct {
	Events          []EventSelection
	Calls           []CallSelection
	EvmLogs         []EvmLogSelection
	EthTransactions []EthTransactSelection
	ContractsEvents []ContractsEventSelection

	// IncludeCallEvents pulls in every event emitted by a matched call.
	IncludeCallEvents bool
}

// IsEmpty reports whether the set selects nothing.
func (s *Set) IsEmpty() bool {
	return len(s.Events) == 0 &&
		len(s.Calls) == 0 &&
		len(s.EvmLogs) == 0 &&
		len(s.EthTransactions) == 0 &&
		len(s.ContractsEvents) == 0
}

// HasCallSelections reports whether any call-level selection is present.
func (s *Set) HasCallSelections() bool {
	return len(s.Calls) > 0 || len(s.EthTransactions) > 0
}

// Validate rejects selection kinds that are gated off.
func (s *Set) Validate(c Capabilities) error {
	switch {
	case len(s.EvmLogs) > 0 && !c.EVM:
		return &UnsupportedError{Field: "evmLogs", Capability: "EVM"}
	case len(s.EthTransactions) > 0 && !c.EVM:
		return &UnsupportedError{Field: "ethereumTransactions", Capability: "EVM"}
	case len(s.ContractsEvents) > 0 && !c.Contracts:
		return &UnsupportedError{Field: "contractsEvents", Capability: "contracts"}
	}
	return nil
}

// MatchCall reports whether the call matches any call-level selection.
func (s *Set) MatchCall(c CallRecord) bool {
	for i := range s.Calls {
		if s.Calls[i].Matches(c) {
			return true
		}
	}
	for i := range s.EthTransactions {
		if s.EthTransactions[i].Matches(c) {
			return true
		}
	}
	return false
}

// EventMatch is the outcome of matching an event against a set.
type EventMatch struct {
	Matched bool
	// Extrinsic and Call report whether a matching selection pulls in the
	// owning extrinsic and call.
	Extrinsic bool
	Call      bool
}

func (m *EventMatch) add(extrinsic *ExtrinsicFields, call *CallFields) {
	m.Matched = true
	m.Extrinsic = m.Extrinsic || extrinsic != nil
	m.Call = m.Call || call != nil
}

// MatchEvent matches the event against every event-level selection.
func (s *Set) MatchEvent(e EventRecord) EventMatch {
	var m EventMatch
	for i := range s.Events {
		if sel := &s.Events[i]; sel.Matches(e) {
			m.add(sel.Extrinsic, sel.Call)
		}
	}
	for i := range s.EvmLogs {
		if sel := &s.EvmLogs[i]; sel.Matches(e) {
			m.add(sel.Extrinsic, sel.Call)
		}
	}
	for i := range s.ContractsEvents {
		if sel := &s.ContractsEvents[i]; sel.Matches(e) {
			m.add(sel.Extrinsic, sel.Call)
		}
	}
	return m
}

// ExtrinsicProjection is the union of the extrinsic projections of the set.
func (s *Set) ExtrinsicProjection() ExtrinsicFields {
	var f ExtrinsicFields
	for _, sel := range s.Calls {
		f = f.Union(sel.Extrinsic)
	}
	for _, sel := range s.EthTransactions {
		f = f.Union(sel.Extrinsic)
	}
	s.eachEventLevel(func(_ EventFields, x *ExtrinsicFields, _ *CallFields) {
		if x != nil {
			f = f.Union(*x)
		}
	})
	return f
}

// CallProjection is the union of the call projections of the set.
func (s *Set) CallProjection() CallFields {
	var f CallFields
	for _, sel := range s.Calls {
		f = f.Union(sel.Call)
	}
	for _, sel := range s.EthTransactions {
		f = f.Union(sel.Call)
	}
	s.eachEventLevel(func(_ EventFields, _ *ExtrinsicFields, c *CallFields) {
		if c != nil {
			f = f.Union(*c)
		}
	})
	return f
}

// EventProjection is the union of the event projections of the set. Events
// pulled in by matched calls use the default projection.
func (s *Set) EventProjection() EventFields {
	var f EventFields
	s.eachEventLevel(func(e EventFields, _ *ExtrinsicFields, _ *CallFields) {
		f = f.Union(e)
	})
	if s.IncludeCallEvents && s.HasCallSelections() {
		f = f.Union(DefaultEventFields)
	}
	return f
}

func (s *Set) eachEventLevel(fn func(EventFields, *ExtrinsicFields, *CallFields)) {
	for _, sel := range s.Events {
		fn(sel.Event, sel.Extrinsic, sel.Call)
	}
	for _, sel := range s.EvmLogs {
		fn(sel.Event, sel.Extrinsic, sel.Call)
	}
	for _, sel := range s.ContractsEvents {
		fn(sel.Event, sel.Extrinsic, sel.Call)
	}
}
