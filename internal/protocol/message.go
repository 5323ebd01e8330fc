// Package protocol implements the JSON-over-UDP wire format shared between
// a replica and the simulator (spec.md 4.1, 6). Every message is a tagged
// variant keyed by its "type" field; this file is the Go-native form of
// what the original implementation expressed as frozen dataclasses plus a
// deserialize_message dispatch function - a discriminated union decoded by
// a small switch on the type tag, not reflection over field lists.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind is the wire "type" discriminator.
type Kind string

const (
	KindHello          Kind = "hello"
	KindGet            Kind = "get"
	KindPut            Kind = "put"
	KindOk             Kind = "ok"
	KindFail           Kind = "fail"
	KindRedirect       Kind = "redirect"
	KindVoteRequest    Kind = "vote_request"
	KindVoteResponse   Kind = "vote_response"
	KindAppendRequest  Kind = "append_request"
	KindAppendResponse Kind = "append_response"
)

// BroadcastDestination is the sentinel destination the simulator fans out
// to every other replica.
const BroadcastDestination = "FFFF"

// DecodeError wraps any failure to parse an inbound datagram. Per spec.md
// 7, decode failure is fatal: the replica's event loop does not recover
// from it.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v (raw=%q)", e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Header is embedded in every message variant.
type Header struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Leader string `json:"leader"`
	Type   Kind   `json:"type"`
}

// Entry is the unit of replication: an immutable term/key/value record.
type Entry struct {
	Term  int    `json:"term"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Message is implemented by every concrete variant below. Base returns the
// shared header so dispatch code can read Src/Dst/Leader/Type without a
// type switch.
type Message interface {
	Base() Header
}

type HelloMessage struct {
	Header
}

func (m HelloMessage) Base() Header { return m.Header }

// ClientFields are carried by every client-originated (or client-directed)
// message so the MID can be echoed back verbatim (spec.md 6).
type ClientFields struct {
	MID string `json:"MID"`
}

type GetRequest struct {
	Header
	ClientFields
	Key string `json:"key"`
}

func (m GetRequest) Base() Header { return m.Header }

type PutRequest struct {
	Header
	ClientFields
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (m PutRequest) Base() Header { return m.Header }

// OkResponse answers both get (with Value) and put (Value left empty).
type OkResponse struct {
	Header
	ClientFields
	Value string `json:"value,omitempty"`
}

func (m OkResponse) Base() Header { return m.Header }

type FailResponse struct {
	Header
	ClientFields
}

func (m FailResponse) Base() Header { return m.Header }

type RedirectResponse struct {
	Header
	ClientFields
}

func (m RedirectResponse) Base() Header { return m.Header }

type VoteRequest struct {
	Header
	Term         int    `json:"term"`
	CandidateID  string `json:"candidateId"`
	LastLogIndex int    `json:"last_log_index"`
	LastLogTerm  int    `json:"last_log_term"`
}

func (m VoteRequest) Base() Header { return m.Header }

type VoteResponse struct {
	Header
	Term        int  `json:"term"`
	VoteGranted bool `json:"vote_granted"`
}

func (m VoteResponse) Base() Header { return m.Header }

type AppendRequest struct {
	Header
	Term              int     `json:"term"`
	LastLogIndex      int     `json:"last_log_index"`
	LastLogTerm       int     `json:"last_log_term"`
	Entries           []Entry `json:"entries"`
	LeaderCommitIndex int     `json:"leader_commit_index"`
}

func (m AppendRequest) Base() Header { return m.Header }

// AppendResponse carries the responder's own last_log_index/term both when
// it accepts (new committed index) and when it refuses (its own state, as
// a refusal signal - spec.md 4.3).
type AppendResponse struct {
	Header
	Term         int `json:"term"`
	LastLogIndex int `json:"last_log_index"`
	LastLogTerm  int `json:"last_log_term"`
}

func (m AppendResponse) Base() Header { return m.Header }

// Decode parses a single JSON datagram into its concrete Message variant.
// Unknown type values produce a *DecodeError, matching spec.md 4.1's
// "unknown type -> fails with DecodeError" contract.
func Decode(raw []byte) (Message, error) {
	var head Header
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}

	var (
		msg Message
		err error
	)

	switch head.Type {
	case KindHello:
		var m HelloMessage
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindGet:
		var m GetRequest
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindPut:
		var m PutRequest
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindOk:
		var m OkResponse
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindFail:
		var m FailResponse
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindRedirect:
		var m RedirectResponse
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindVoteRequest:
		var m VoteRequest
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindVoteResponse:
		var m VoteResponse
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindAppendRequest:
		var m AppendRequest
		err = json.Unmarshal(raw, &m)
		msg = m
	case KindAppendResponse:
		var m AppendResponse
		err = json.Unmarshal(raw, &m)
		msg = m
	default:
		return nil, &DecodeError{Raw: raw, Err: fmt.Errorf("unknown message type %q", head.Type)}
	}

	if err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	return msg, nil
}

// Encode marshals a message back to its wire form. Each variant's own json
// tags already emit exactly the fields spec.md 4.1 lists for that type, so
// this is a direct marshal rather than a field-by-field reconstruction.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}
