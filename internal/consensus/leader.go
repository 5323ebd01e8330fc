package consensus

import (
	"time"

	"github.com/raftkv/replica/internal/protocol"
)

// Leader serves client reads/writes directly and drives log replication via
// periodic append_request broadcasts (spec.md 4.5).
type Leader struct {
	Base
	State LeaderState

	AppendEntryTimeout time.Duration
}

// Timeout implements get_timeout(): heartbeat cadence normally, an
// immediate timeout once the uncommitted batch is full, and a shorter
// batching timeout in between - clamped so it never goes below
// ImmediateTimeout (spec.md 4.5).
func (l *Leader) Timeout() time.Duration {
	var want time.Duration
	switch {
	case len(l.State.UncommittedEntries) == 0:
		want = l.AppendEntryTimeout
	case len(l.State.UncommittedEntries) >= MaxUncommittedLogCount:
		want = ImmediateTimeout
	default:
		want = DefaultUncommittedTimeout
	}

	expectedEnd := l.LastAppendEntries.Add(want)
	remaining := time.Until(expectedEnd)
	if remaining < ImmediateTimeout {
		return ImmediateTimeout
	}
	return remaining
}

func (l *Leader) Status() Status {
	applied, _ := l.State.LastAppliedLogIndex()
	return Status{
		Role:         "Leader",
		Term:         l.State.TermCount,
		ID:           l.ThisID,
		LogLength:    l.State.LastCommitLogCount(),
		CommitIndex:  l.State.LastCommitLogCount(),
		AppliedIndex: applied,
		LeaderVote:   l.ThisID,
		KeyCount:     l.Store.Len(),
	}
}

// HandleTimeout broadcasts one append_request batching every currently
// uncommitted entry, then - per the source's "assume success" shortcut
// (spec.md 9, open question 3) - moves the whole uncommitted batch into
// the committed log without waiting for any follower ack.
func (l *Leader) HandleTimeout() (protocol.Message, Role) {
	req := protocol.AppendRequest{
		Header: protocol.Header{
			Src:    l.ThisID,
			Dst:    protocol.BroadcastDestination,
			Leader: l.ThisID,
			Type:   protocol.KindAppendRequest,
		},
		Term: l.State.TermCount,
		// Hard-coded rather than tracked per follower, so a follower's
		// matching-log check only succeeds while its committed log is empty.
		LastLogIndex:      0,
		LastLogTerm:       0,
		Entries:           l.State.UncommittedEntries,
		LeaderCommitIndex: l.State.LastCommitLogCount(),
	}

	nextState := l.State
	nextState.LogEntries = append(append([]protocol.Entry{}, l.State.LogEntries...), l.State.UncommittedEntries...)
	nextState.UncommittedEntries = nil

	next := &Leader{
		Base:               l.Base,
		State:              nextState,
		AppendEntryTimeout: DefaultLeaderHeartbeat,
	}
	next.LastAppendEntries = time.Now()

	return req, next
}

func (l *Leader) HandleMessage(msg protocol.Message) (protocol.Message, Role) {
	if stepDownTerm, ok := termOf(msg); ok && stepDownTerm > l.State.TermCount {
		follower := &Follower{
			Base: l.Base,
			State: TermState{
				TermCount:          stepDownTerm,
				UncommittedEntries: l.State.UncommittedEntries,
				LogEntries:         l.State.LogEntries,
				LeaderIDVote:       "",
			},
		}
		follower.LastAppendEntries = time.Now()
		l.Logger.Info().Int("term", stepDownTerm).Msg("stepping down to follower")
		return follower.HandleMessage(msg)
	}

	switch m := msg.(type) {
	case protocol.GetRequest:
		return l.handleGetRequest(m)
	case protocol.PutRequest:
		return l.handlePutRequest(m)
	case protocol.VoteResponse:
		return l.handleVoteResponse(m)
	case protocol.AppendResponse:
		return l.handleAppendEntryResponse(m)
	default:
		l.Logger.Debug().Err(ErrUnknownMessage).Interface("message", msg).Msg("ignored")
		return nil, l
	}
}

// termOf extracts the term carried by messages that can trigger a leader
// step-down; messages without a term (hello, get, put, redirect, ok,
// fail) never do.
func termOf(msg protocol.Message) (int, bool) {
	switch m := msg.(type) {
	case protocol.VoteRequest:
		return m.Term, true
	case protocol.VoteResponse:
		return m.Term, true
	case protocol.AppendRequest:
		return m.Term, true
	case protocol.AppendResponse:
		return m.Term, true
	default:
		return 0, false
	}
}

func (l *Leader) handleGetRequest(req protocol.GetRequest) (protocol.Message, Role) {
	value, err := l.Store.Get(req.Key)
	if err != nil {
		l.Logger.Debug().Err(ErrClientMiss).Str("key", req.Key).Msg("get miss")
		return protocol.FailResponse{
			Header: protocol.Header{
				Src:    l.ThisID,
				Dst:    req.Src,
				Leader: l.ThisID,
				Type:   protocol.KindFail,
			},
			ClientFields: req.ClientFields,
		}, l
	}

	return protocol.OkResponse{
		Header: protocol.Header{
			Src:    l.ThisID,
			Dst:    req.Src,
			Leader: l.ThisID,
			Type:   protocol.KindOk,
		},
		ClientFields: req.ClientFields,
		Value:        value,
	}, l
}

// handlePutRequest appends the write to the uncommitted batch and updates
// the local kv projection before any replication has happened, then
// answers ok immediately - optimistic, without waiting for quorum
// (spec.md 9, open question 2).
func (l *Leader) handlePutRequest(req protocol.PutRequest) (protocol.Message, Role) {
	entry := protocol.Entry{Term: l.State.TermCount, Key: req.Key, Value: req.Value}

	nextState := l.State
	nextState.UncommittedEntries = append(append([]protocol.Entry{}, l.State.UncommittedEntries...), entry)

	next := &Leader{Base: l.Base, State: nextState, AppendEntryTimeout: l.AppendEntryTimeout}
	next.LastAppendEntries = l.LastAppendEntries
	next.Store.Set(req.Key, req.Value)

	response := protocol.OkResponse{
		Header: protocol.Header{
			Src:    l.ThisID,
			Dst:    req.Src,
			Leader: l.ThisID,
			Type:   protocol.KindOk,
		},
		ClientFields: req.ClientFields,
	}
	return response, next
}

func (l *Leader) handleVoteResponse(resp protocol.VoteResponse) (protocol.Message, Role) {
	if !resp.VoteGranted {
		return nil, l
	}
	newVotes := make(map[string]struct{}, len(l.State.ReceivedVoteIDs)+1)
	for id := range l.State.ReceivedVoteIDs {
		newVotes[id] = struct{}{}
	}
	newVotes[resp.Src] = struct{}{}

	nextState := l.State
	nextState.ReceivedVoteIDs = newVotes
	return nil, &Leader{Base: l.Base, State: nextState, AppendEntryTimeout: l.AppendEntryTimeout}
}

// handleAppendEntryResponse is a no-op on the leader, matching the
// source's stub: commit advancement relies entirely on the
// timeout-side "assume success" shortcut in HandleTimeout rather than
// real per-follower next-index/ack-set bookkeeping (spec.md 9, open
// question 3).
func (l *Leader) handleAppendEntryResponse(resp protocol.AppendResponse) (protocol.Message, Role) {
	return nil, l
}
