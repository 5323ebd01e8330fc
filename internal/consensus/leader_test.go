package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raftkv/replica/internal/protocol"
)

func newLeader(thisID string, otherIDs ...string) *Leader {
	return &Leader{
		Base:               testBase(thisID, otherIDs...),
		State:              LeaderState{ReceivedPutResponses: make(map[int]map[string]struct{})},
		AppendEntryTimeout: DefaultLeaderHeartbeat,
	}
}

func TestLeaderPutRespondsOkAndUpdatesStoreOptimistically(t *testing.T) {
	l := newLeader("A", "B", "C")

	resp, next := l.HandleMessage(protocol.PutRequest{
		Header:       protocol.Header{Src: "client", Dst: "A", Leader: "A", Type: protocol.KindPut},
		ClientFields: protocol.ClientFields{MID: "m1"},
		Key:          "x",
		Value:        "v",
	})

	ok, isOk := resp.(protocol.OkResponse)
	require.True(t, isOk)
	require.Equal(t, "m1", ok.MID)

	nextLeader, isLeader := next.(*Leader)
	require.True(t, isLeader)
	require.Len(t, nextLeader.State.UncommittedEntries, 1)

	val, err := nextLeader.Store.Get("x")
	require.NoError(t, err)
	require.Equal(t, "v", val)
}

func TestLeaderGetServesLocallyAndFailsOnMiss(t *testing.T) {
	l := newLeader("A", "B")
	l.Store.Set("x", "v")

	resp, _ := l.HandleMessage(protocol.GetRequest{
		Header:       protocol.Header{Src: "client", Dst: "A", Leader: "A", Type: protocol.KindGet},
		ClientFields: protocol.ClientFields{MID: "m2"},
		Key:          "x",
	})
	ok, isOk := resp.(protocol.OkResponse)
	require.True(t, isOk)
	require.Equal(t, "v", ok.Value)

	missResp, _ := l.HandleMessage(protocol.GetRequest{
		Header:       protocol.Header{Src: "client", Dst: "A", Leader: "A", Type: protocol.KindGet},
		ClientFields: protocol.ClientFields{MID: "m3"},
		Key:          "missing",
	})
	_, isFail := missResp.(protocol.FailResponse)
	require.True(t, isFail)
}

func TestLeaderHandleTimeoutCommitsUncommittedAndBroadcasts(t *testing.T) {
	l := newLeader("A", "B", "C")
	l.State.UncommittedEntries = []protocol.Entry{{Term: 0, Key: "x", Value: "v"}}

	msg, next := l.HandleTimeout()

	req, ok := msg.(protocol.AppendRequest)
	require.True(t, ok)
	require.Equal(t, protocol.BroadcastDestination, req.Dst)
	require.Len(t, req.Entries, 1)

	nextLeader, ok := next.(*Leader)
	require.True(t, ok)
	require.Empty(t, nextLeader.State.UncommittedEntries)
	require.Len(t, nextLeader.State.LogEntries, 1)
}

func TestLeaderTimeoutIsImmediateWhenBatchFull(t *testing.T) {
	l := newLeader("A", "B", "C")
	for i := 0; i < MaxUncommittedLogCount; i++ {
		l.State.UncommittedEntries = append(l.State.UncommittedEntries, protocol.Entry{Term: 0, Key: "k", Value: "v"})
	}
	require.LessOrEqual(t, l.Timeout(), ImmediateTimeout)
}

func TestLeaderHeartbeatTimeoutWhenIdle(t *testing.T) {
	l := newLeader("A", "B", "C")
	l.LastAppendEntries = time.Now()
	require.LessOrEqual(t, l.Timeout(), DefaultLeaderHeartbeat)
	require.Greater(t, l.Timeout(), time.Duration(0))
}

func TestLeaderStepsDownOnHigherTerm(t *testing.T) {
	l := newLeader("A", "B", "C")
	l.State.TermCount = 1

	req := protocol.AppendRequest{
		Header: protocol.Header{Src: "B", Dst: "A", Leader: "B", Type: protocol.KindAppendRequest},
		Term:   2,
	}

	_, next := l.HandleMessage(req)
	follower, ok := next.(*Follower)
	require.True(t, ok)
	require.Equal(t, 2, follower.State.TermCount)
}
