package consensus

import (
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/raftkv/replica/internal/store"
)

// testBase builds a Base with a discarding logger and no live socket - the
// role handlers under test never touch Conn/SimulatorAddr directly (only
// Engine.send does), so tests can exercise HandleMessage/HandleTimeout in
// isolation, the same "instantiate a replica in a given state" approach
// the original launch.py comments call out as the point of the design.
func testBase(thisID string, otherIDs ...string) Base {
	others := make(map[string]struct{}, len(otherIDs))
	for _, id := range otherIDs {
		others[id] = struct{}{}
	}
	return Base{
		ThisID:            thisID,
		OtherIDs:          others,
		NoMessageTimeout:  200 * time.Millisecond,
		LastAppendEntries: EpochStart,
		Logger:            zerolog.New(io.Discard),
		Store:             store.NewStore(),
	}
}
