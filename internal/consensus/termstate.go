package consensus

import "github.com/raftkv/replica/internal/protocol"

// TermState is the shared, pure-data term tracking carried by every role
// (spec.md 3). An empty LeaderIDVote ("") means no leader is currently recognized
// (Follower) or no vote has been cast this term (Candidate) - an empty
// replica id is never valid, so the zero value doubles as "unset", the
// same sentinel convention the teacher used for VotedFor in raft.go.
type TermState struct {
	TermCount          int
	UncommittedEntries []protocol.Entry
	LogEntries         []protocol.Entry
	LeaderIDVote       string
}

// LastAppliedLogCount is the number of log entries applied to the state
// machine - committed entries plus whatever is still uncommitted.
func (t TermState) LastAppliedLogCount() int {
	return len(t.LogEntries) + len(t.UncommittedEntries)
}

// LastCommitLogCount is the number of log entries known to be committed.
func (t TermState) LastCommitLogCount() int {
	return len(t.LogEntries)
}

// LastAppliedLogIndex returns (index, true) unless nothing has been
// applied yet.
func (t TermState) LastAppliedLogIndex() (int, bool) {
	count := t.LastAppliedLogCount()
	if count == 0 {
		return 0, false
	}
	return count - 1, true
}

// LastCommitLogIndex returns (index, true) unless nothing has been
// committed yet.
func (t TermState) LastCommitLogIndex() (int, bool) {
	count := t.LastCommitLogCount()
	if count == 0 {
		return 0, false
	}
	return count - 1, true
}

// CandidateState extends TermState with the set of replica ids that have
// granted this candidate a vote in the current term. It always contains
// this replica's own id.
type CandidateState struct {
	TermState
	ReceivedVoteIDs map[string]struct{}
}

// LeaderState extends TermState with the vote set that elected this leader
// and a map from log index to the set of replicas that have acknowledged
// that index (spec.md 3, 4.5). The map is allocated on promotion but never
// filled or read: handleAppendEntryResponse is a no-op, and commits happen
// in Leader.HandleTimeout without follower acks.
type LeaderState struct {
	TermState
	ReceivedVoteIDs     map[string]struct{}
	ReceivedPutResponses map[int]map[string]struct{}
}

// Quorum reports the number of votes/acks (including self) needed to
// cross a majority: strictly more than floor(len(otherIDs)/2), i.e.
// floor(len(otherIDs)/2) + 1. This mirrors the source's
// `len(received_vote_ids) > int(len(other_ids) / 2)` check exactly -
// deliberately NOT floor((otherIDCount+1)/2)+1, which would require one
// more vote than the source does for even replica counts (odd
// otherIDCount).
func Quorum(otherIDCount int) int {
	return otherIDCount/2 + 1
}

// HasQuorum reports whether the given count of supporters (which does NOT
// need to separately include "self" - callers are expected to have already
// added self to the set before counting) crosses quorum.
func HasQuorum(supporterCount, otherIDCount int) bool {
	return supporterCount >= Quorum(otherIDCount)
}
