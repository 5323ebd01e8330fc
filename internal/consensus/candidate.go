package consensus

import (
	"time"

	"github.com/raftkv/replica/internal/protocol"
)

// Candidate coordinates a single election: it rebroadcasts vote_request on
// timeout and tallies vote_response until it crosses quorum (spec.md 4.4).
type Candidate struct {
	Base
	State CandidateState
}

func (c *Candidate) Timeout() time.Duration {
	return c.NoMessageTimeout
}

func (c *Candidate) Status() Status {
	applied, _ := c.State.LastAppliedLogIndex()
	return Status{
		Role:         "Candidate",
		Term:         c.State.TermCount,
		ID:           c.ThisID,
		LogLength:    c.State.LastCommitLogCount(),
		CommitIndex:  c.State.LastCommitLogCount(),
		AppliedIndex: applied,
		LeaderVote:   c.State.LeaderIDVote,
		KeyCount:     c.Store.Len(),
	}
}

func (c *Candidate) generateVoteRequest() protocol.VoteRequest {
	return protocol.VoteRequest{
		Header: protocol.Header{
			Src:    c.ThisID,
			Dst:    protocol.BroadcastDestination,
			Leader: protocol.BroadcastDestination,
			Type:   protocol.KindVoteRequest,
		},
		Term:         c.State.TermCount,
		CandidateID:  c.ThisID,
		LastLogIndex: c.State.LastAppliedLogCount(),
		LastLogTerm:  c.State.TermCount,
	}
}

// HandleTimeout starts a fresh round of the election: bump the term, reset
// the vote set to just self, and rebroadcast (spec.md 4.4). Self alone can
// already cross quorum when other_ids is empty (spec.md 8 scenario 1), so
// the current vote set is checked first: if it already holds quorum the
// Candidate becomes Leader at its current term, without bumping the term
// or waiting for a vote_response that will never arrive.
func (c *Candidate) HandleTimeout() (protocol.Message, Role) {
	if HasQuorum(len(c.State.ReceivedVoteIDs), len(c.OtherIDs)) {
		return nil, promoteToLeader(c.Base, c.State)
	}

	c.Logger.Info().Int("term", c.State.TermCount+1).Msg("election timed out, starting new round")

	nextState := CandidateState{
		TermState:       c.State.TermState,
		ReceivedVoteIDs: map[string]struct{}{c.ThisID: {}},
	}
	nextState.TermCount++

	if HasQuorum(len(nextState.ReceivedVoteIDs), len(c.OtherIDs)) {
		return nil, promoteToLeader(c.Base, nextState)
	}

	next := &Candidate{Base: c.Base, State: nextState}
	return next.generateVoteRequest(), next
}

func (c *Candidate) HandleMessage(msg protocol.Message) (protocol.Message, Role) {
	switch m := msg.(type) {
	case protocol.VoteResponse:
		return c.handleVoteResponse(m)
	case protocol.VoteRequest:
		return c.handleVoteRequest(m)
	case protocol.AppendRequest:
		return c.handleAppendEntry(m)
	case protocol.GetRequest:
		return redirectOrFatal(c.Logger, c.ThisID, c.State.LeaderIDVote, m.Header, m.ClientFields), c
	case protocol.PutRequest:
		return redirectOrFatal(c.Logger, c.ThisID, c.State.LeaderIDVote, m.Header, m.ClientFields), c
	default:
		c.Logger.Debug().Err(ErrUnknownMessage).Interface("message", msg).Msg("ignored")
		return nil, c
	}
}

// handleVoteRequest never grants a vote to a competing candidate while in
// this role - every branch answers with (nil, self). This reproduces a
// known gap in the source rather than implementing the generally-correct
// Raft rule of deferring to a candidate with a newer term; only an
// append_request (handleAppendEntry below) can force this replica to step
// down while it is a Candidate.
func (c *Candidate) handleVoteRequest(req protocol.VoteRequest) (protocol.Message, Role) {
	return nil, c
}

func (c *Candidate) handleVoteResponse(resp protocol.VoteResponse) (protocol.Message, Role) {
	if !resp.VoteGranted {
		return nil, c
	}

	newVotes := make(map[string]struct{}, len(c.State.ReceivedVoteIDs)+1)
	for id := range c.State.ReceivedVoteIDs {
		newVotes[id] = struct{}{}
	}
	newVotes[resp.Src] = struct{}{}

	nextState := CandidateState{
		TermState:       c.State.TermState,
		ReceivedVoteIDs: newVotes,
	}

	if HasQuorum(len(newVotes), len(c.OtherIDs)) {
		c.Logger.Info().Int("term", c.State.TermCount).Msg("elected leader")
		return nil, promoteToLeader(c.Base, nextState)
	}

	return nil, &Candidate{Base: c.Base, State: nextState}
}

// promoteToLeader builds the Leader that a Candidate transitions to once
// its vote set crosses quorum (spec.md 4.4), called both from
// handleVoteResponse (the normal path) and from HandleTimeout/HandleTimeout
// callers that already hold quorum by self alone.
func promoteToLeader(base Base, state CandidateState) *Leader {
	leaderState := LeaderState{
		TermState:            state.TermState,
		ReceivedVoteIDs:      state.ReceivedVoteIDs,
		ReceivedPutResponses: make(map[int]map[string]struct{}),
	}

	leader := &Leader{
		Base:               base,
		State:              leaderState,
		AppendEntryTimeout: DefaultLeaderHeartbeat,
	}
	leader.LastAppendEntries = EpochStart // forces an immediate heartbeat next iteration

	// A freshly elected leader's own uncommitted entries are, by
	// definition, writes it has already accepted - reflect them in the kv
	// projection immediately (spec.md 3's "on the leader it reflects all
	// writes it has accepted, including uncommitted").
	for _, entry := range leaderState.UncommittedEntries {
		leader.Store.Set(entry.Key, entry.Value)
	}

	return leader
}

// handleAppendEntry mirrors the source's Candidate.handle_append_entry: if
// the term is at least current and the log is compatible, step down to
// Follower at the request's term and delegate to the Follower's own
// append handling for this same message (spec.md 4.4). Otherwise the
// request is ignored and the Candidate carries on with its election.
func (c *Candidate) handleAppendEntry(req protocol.AppendRequest) (protocol.Message, Role) {
	logsCompatible := req.LastLogIndex >= c.State.LastCommitLogCount()
	if req.Term < c.State.TermCount || !logsCompatible {
		return nil, c
	}

	followerState := TermState{
		TermCount:          req.Term,
		UncommittedEntries: c.State.UncommittedEntries,
		LogEntries:         c.State.LogEntries,
		LeaderIDVote:       req.Leader,
	}
	follower := &Follower{Base: c.Base, State: followerState}
	return follower.handleAppendRequest(req)
}
