package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raftkv/replica/internal/protocol"
)

func TestCandidateBecomesLeaderOnQuorum(t *testing.T) {
	c := &Candidate{
		Base: testBase("A", "B", "C"),
		State: CandidateState{
			TermState:       TermState{TermCount: 1},
			ReceivedVoteIDs: map[string]struct{}{"A": {}},
		},
	}

	_, next := c.HandleMessage(protocol.VoteResponse{
		Header:      protocol.Header{Src: "B", Dst: "A", Leader: protocol.BroadcastDestination, Type: protocol.KindVoteResponse},
		Term:        0,
		VoteGranted: true,
	})

	// two votes ("A" + "B") out of three replicas crosses quorum (2).
	leader, ok := next.(*Leader)
	require.True(t, ok)
	require.Equal(t, DefaultLeaderHeartbeat, leader.AppendEntryTimeout)
	require.Equal(t, EpochStart, leader.LastAppendEntries)
}

func TestCandidateStaysCandidateBelowQuorum(t *testing.T) {
	c := &Candidate{
		Base: testBase("A", "B", "C", "D", "E"),
		State: CandidateState{
			TermState:       TermState{TermCount: 1},
			ReceivedVoteIDs: map[string]struct{}{"A": {}},
		},
	}

	_, next := c.HandleMessage(protocol.VoteResponse{
		Header:      protocol.Header{Src: "B", Dst: "A", Leader: protocol.BroadcastDestination, Type: protocol.KindVoteResponse},
		Term:        0,
		VoteGranted: true,
	})

	// two votes out of five replicas (quorum 3) does not yet elect.
	candidate, ok := next.(*Candidate)
	require.True(t, ok)
	require.Len(t, candidate.State.ReceivedVoteIDs, 2)
}

func TestCandidateNeverGrantsCompetingVote(t *testing.T) {
	c := &Candidate{Base: testBase("A", "B", "C"), State: CandidateState{TermState: TermState{TermCount: 3}}}

	resp, next := c.HandleMessage(protocol.VoteRequest{
		Header:       protocol.Header{Src: "B", Dst: "A", Leader: protocol.BroadcastDestination, Type: protocol.KindVoteRequest},
		Term:         5,
		CandidateID:  "B",
		LastLogIndex: 0,
		LastLogTerm:  0,
	})

	require.Nil(t, resp)
	require.Same(t, c, next)
}

func TestCandidateStepsDownOnCompatibleAppendRequest(t *testing.T) {
	c := &Candidate{Base: testBase("A", "B", "C"), State: CandidateState{TermState: TermState{TermCount: 1}}}

	req := protocol.AppendRequest{
		Header:            protocol.Header{Src: "B", Dst: "A", Leader: "B", Type: protocol.KindAppendRequest},
		Term:              2,
		LastLogIndex:      0,
		LastLogTerm:       0,
		LeaderCommitIndex: 0,
	}

	_, next := c.HandleMessage(req)

	follower, ok := next.(*Follower)
	require.True(t, ok)
	require.Equal(t, 2, follower.State.TermCount)
	require.Equal(t, "B", follower.State.LeaderIDVote)
}

func TestCandidateIgnoresStaleAppendRequest(t *testing.T) {
	c := &Candidate{Base: testBase("A", "B", "C"), State: CandidateState{TermState: TermState{TermCount: 5}}}

	req := protocol.AppendRequest{
		Header: protocol.Header{Src: "B", Dst: "A", Leader: "B", Type: protocol.KindAppendRequest},
		Term:   4,
	}

	resp, next := c.HandleMessage(req)
	require.Nil(t, resp)
	require.Same(t, c, next)
}
