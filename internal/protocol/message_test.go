package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeVoteRequest(t *testing.T) {
	raw := []byte(`{"src":"0001","dst":"FFFF","leader":"FFFF","type":"vote_request","term":1,"candidateId":"0001","last_log_index":3,"last_log_term":0}`)

	msg, err := Decode(raw)
	require.NoError(t, err)

	vr, ok := msg.(VoteRequest)
	require.True(t, ok)
	require.Equal(t, 1, vr.Term)
	require.Equal(t, "0001", vr.CandidateID)
	require.Equal(t, 3, vr.LastLogIndex)
	require.Equal(t, 0, vr.LastLogTerm)
	require.Equal(t, "0001", vr.Src)
	require.Equal(t, BroadcastDestination, vr.Dst)
}

func TestDecodeUnknownTypeFails(t *testing.T) {
	raw := []byte(`{"src":"0001","dst":"FFFF","leader":"FFFF","type":"not_a_real_type"}`)

	_, err := Decode(raw)
	require.Error(t, err)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestRoundTripEveryVariant(t *testing.T) {
	variants := []Message{
		HelloMessage{Header: Header{Src: "a", Dst: BroadcastDestination, Leader: BroadcastDestination, Type: KindHello}},
		GetRequest{Header: Header{Src: "client", Dst: "a", Leader: "a", Type: KindGet}, ClientFields: ClientFields{MID: "m1"}, Key: "x"},
		PutRequest{Header: Header{Src: "client", Dst: "a", Leader: "a", Type: KindPut}, ClientFields: ClientFields{MID: "m2"}, Key: "x", Value: "v"},
		OkResponse{Header: Header{Src: "a", Dst: "client", Leader: "a", Type: KindOk}, ClientFields: ClientFields{MID: "m2"}},
		OkResponse{Header: Header{Src: "a", Dst: "client", Leader: "a", Type: KindOk}, ClientFields: ClientFields{MID: "m1"}, Value: "v"},
		FailResponse{Header: Header{Src: "a", Dst: "client", Leader: "a", Type: KindFail}, ClientFields: ClientFields{MID: "m3"}},
		RedirectResponse{Header: Header{Src: "b", Dst: "client", Leader: "a", Type: KindRedirect}, ClientFields: ClientFields{MID: "m4"}},
		VoteRequest{Header: Header{Src: "a", Dst: BroadcastDestination, Leader: BroadcastDestination, Type: KindVoteRequest}, Term: 1, CandidateID: "a", LastLogIndex: 0, LastLogTerm: 0},
		VoteResponse{Header: Header{Src: "b", Dst: "a", Leader: BroadcastDestination, Type: KindVoteResponse}, Term: 1, VoteGranted: true},
		AppendRequest{Header: Header{Src: "a", Dst: BroadcastDestination, Leader: "a", Type: KindAppendRequest}, Term: 1, Entries: []Entry{{Term: 1, Key: "x", Value: "v"}}, LeaderCommitIndex: 0},
		AppendResponse{Header: Header{Src: "b", Dst: "a", Leader: "a", Type: KindAppendResponse}, Term: 1, LastLogIndex: 1, LastLogTerm: 1},
	}

	for _, original := range variants {
		encoded, err := Encode(original)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, original, decoded)
	}
}

func TestAppendRequestEntriesRoundTrip(t *testing.T) {
	req := AppendRequest{
		Header: Header{Src: "a", Dst: BroadcastDestination, Leader: "a", Type: KindAppendRequest},
		Term:   2,
		Entries: []Entry{
			{Term: 1, Key: "x", Value: "1"},
			{Term: 2, Key: "y", Value: "2"},
		},
		LeaderCommitIndex: 1,
	}

	encoded, err := Encode(req)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	got, ok := decoded.(AppendRequest)
	require.True(t, ok)
	require.Len(t, got.Entries, 2)
	require.Equal(t, req.Entries, got.Entries)
}
