package consensus

import (
	"time"

	"github.com/raftkv/replica/internal/protocol"
)

// Follower is a passive replica: it grants votes, accepts replicated
// entries from the leader it recognizes, and redirects clients
// (spec.md 4.3).
type Follower struct {
	Base
	State TermState
}

func (f *Follower) Timeout() time.Duration {
	return f.NoMessageTimeout
}

func (f *Follower) Status() Status {
	applied, _ := f.State.LastAppliedLogIndex()
	return Status{
		Role:         "Follower",
		Term:         f.State.TermCount,
		ID:           f.ThisID,
		LogLength:    f.State.LastCommitLogCount(),
		CommitIndex:  f.State.LastCommitLogCount(),
		AppliedIndex: applied,
		LeaderVote:   f.State.LeaderIDVote,
		KeyCount:     f.Store.Len(),
	}
}

// HandleTimeout converts the follower into a Candidate at term+1, voting
// for itself, and broadcasts the first vote_request of the election
// (spec.md 4.3). The Candidate's own HandleTimeout is what checks quorum
// on this fresh vote set (handling the other_ids=∅ single-replica case,
// spec.md 8 scenario 1) - this method always produces a Candidate.
func (f *Follower) HandleTimeout() (protocol.Message, Role) {
	f.Logger.Info().Str("role", "follower").Int("term", f.State.TermCount).Msg("election timeout, becoming candidate")

	nextState := CandidateState{
		TermState: TermState{
			TermCount:          f.State.TermCount + 1,
			LogEntries:         f.State.LogEntries,
			UncommittedEntries: f.State.UncommittedEntries,
			LeaderIDVote:       f.ThisID,
		},
		ReceivedVoteIDs: map[string]struct{}{f.ThisID: {}},
	}

	candidate := &Candidate{Base: f.Base, State: nextState}
	return candidate.generateVoteRequest(), candidate
}

func (f *Follower) HandleMessage(msg protocol.Message) (protocol.Message, Role) {
	switch m := msg.(type) {
	case protocol.VoteRequest:
		return f.handleVoteRequest(m)
	case protocol.AppendRequest:
		return f.handleAppendRequest(m)
	case protocol.GetRequest:
		return f.handleRedirect(m.Header, m.ClientFields)
	case protocol.PutRequest:
		return f.handleRedirect(m.Header, m.ClientFields)
	default:
		// hello and any other variant is silently ignored, same as the
		// base Replica.handle_message fallthrough for non-client traffic.
		f.Logger.Debug().Err(ErrUnknownMessage).Interface("message", msg).Msg("ignored")
		return nil, f
	}
}

func (f *Follower) handleRedirect(req protocol.Header, client protocol.ClientFields) (protocol.Message, Role) {
	return redirectOrFatal(f.Logger, f.ThisID, f.State.LeaderIDVote, req, client), f
}

// handleVoteRequest grants a vote iff the request's term is at least the
// follower's current term and it has not already voted this term
// (spec.md 4.3). A later vote_request in a term we've already voted in is
// dropped silently rather than answered with a denial.
func (f *Follower) handleVoteRequest(req protocol.VoteRequest) (protocol.Message, Role) {
	if f.State.LeaderIDVote != "" {
		return nil, f
	}

	grant := req.Term >= f.State.TermCount

	nextState := f.State
	if grant {
		nextState.LeaderIDVote = req.CandidateID
	}
	next := &Follower{Base: f.Base, State: nextState}

	response := protocol.VoteResponse{
		Header: protocol.Header{
			Src:    f.ThisID,
			Dst:    req.Src,
			Leader: protocol.BroadcastDestination,
			Type:   protocol.KindVoteResponse,
		},
		Term:        f.State.TermCount,
		VoteGranted: grant,
	}
	return response, next
}

// handleAppendRequest implements the log-consistency checks of spec.md
// 4.3/4.6.
func (f *Follower) handleAppendRequest(req protocol.AppendRequest) (protocol.Message, Role) {
	refusal := f.refusalResponse(req)

	if req.Term < f.State.TermCount {
		f.Logger.Debug().Err(ErrProtocolRejection).Int("request_term", req.Term).Int("term", f.State.TermCount).Msg("stale append_request")
		return refusal, f
	}

	if req.LastLogIndex < f.State.LastCommitLogCount() {
		f.Logger.Debug().Err(ErrProtocolRejection).Msg("append_request log gap")
		return refusal, f
	}

	if f.State.LeaderIDVote != req.Leader {
		// Adopt the new leader without touching the logs, and without
		// responding - this loses the ack for the entries carried in
		// this same request, a known gap reproduced as-is rather than
		// patched.
		nextState := f.State
		nextState.LeaderIDVote = req.Leader
		f.Logger.Info().Str("leader", req.Leader).Msg("adopted new leader")
		return nil, &Follower{Base: f.Base, State: nextState}
	}

	if req.LastLogIndex != f.State.LastCommitLogCount() {
		return refusal, f
	}

	if f.State.LastCommitLogCount() == 0 {
		if f.State.TermCount != req.LastLogTerm {
			return refusal, f
		}

		nextState := f.State
		nextState.UncommittedEntries = req.Entries
		next := &Follower{Base: f.Base, State: nextState}
		return f.refusalResponse(req), next
	}

	appliedIdx, _ := f.State.LastAppliedLogIndex()
	matched := f.State.LogEntries[appliedIdx]
	return f.handleMatchedLog(req, matched)
}

func (f *Follower) handleMatchedLog(req protocol.AppendRequest, matched protocol.Entry) (protocol.Message, Role) {
	refusal := f.refusalResponse(req)

	if matched.Term != req.LastLogTerm {
		return refusal, f
	}
	if matched.Term < f.State.TermCount {
		return refusal, f
	}

	numCommitable := req.LeaderCommitIndex - f.State.LastAppliedLogCount()
	if numCommitable < 0 {
		numCommitable = 0
	}
	if numCommitable > len(f.State.UncommittedEntries) {
		numCommitable = len(f.State.UncommittedEntries)
	}
	commitable := f.State.UncommittedEntries[:numCommitable]

	nextState := f.State
	nextState.LogEntries = append(append([]protocol.Entry{}, f.State.LogEntries...), commitable...)
	nextState.UncommittedEntries = append([]protocol.Entry{}, f.State.UncommittedEntries[numCommitable:]...)

	for _, entry := range commitable {
		f.Store.Set(entry.Key, entry.Value)
	}

	next := &Follower{Base: f.Base, State: nextState}

	var lastTerm int
	if len(nextState.LogEntries) > 0 {
		lastTerm = nextState.LogEntries[len(nextState.LogEntries)-1].Term
	}

	response := protocol.AppendResponse{
		Header: protocol.Header{
			Src:    f.ThisID,
			Dst:    req.Src,
			Leader: f.State.LeaderIDVote,
			Type:   protocol.KindAppendResponse,
		},
		Term:         f.State.TermCount,
		LastLogIndex: nextState.LastCommitLogCount(),
		LastLogTerm:  lastTerm,
	}
	return response, next
}

func (f *Follower) refusalResponse(req protocol.AppendRequest) protocol.AppendResponse {
	return protocol.AppendResponse{
		Header: protocol.Header{
			Src:    f.ThisID,
			Dst:    req.Src,
			Leader: f.State.LeaderIDVote,
			Type:   protocol.KindAppendResponse,
		},
		Term:         f.State.TermCount,
		LastLogIndex: f.State.LastCommitLogCount(),
		LastLogTerm:  f.State.TermCount,
	}
}
