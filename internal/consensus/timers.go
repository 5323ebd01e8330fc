package consensus

import (
	"math/rand"
	"time"
)

// Election timeout is randomized once at startup in [150, 300) ms, in 5ms
// steps (spec.md 6). The other constants mirror the leader's batching and
// heartbeat cadence.
const (
	ElectionTimeoutMinMillis  = 150
	ElectionTimeoutMaxMillis  = 300
	ElectionTimeoutStepMillis = 5

	DefaultLeaderHeartbeat     = 70 * time.Millisecond
	DefaultUncommittedTimeout  = 15 * time.Millisecond
	MaxUncommittedLogCount     = 5
	ImmediateTimeout           = 100 * time.Microsecond
)

// EpochStart is used as the initial value for last_append_entries so a
// newly promoted leader's first loop iteration sends an immediate
// heartbeat. Follower and Candidate timeouts do not read it.
var EpochStart = time.Unix(0, 0)

// RandomElectionTimeout draws a value from [150, 300) ms on a 5ms step,
// matching the source's random.randrange(150, 300, 5) / 1000.
func RandomElectionTimeout(rng *rand.Rand) time.Duration {
	steps := (ElectionTimeoutMaxMillis - ElectionTimeoutMinMillis) / ElectionTimeoutStepMillis
	chosen := ElectionTimeoutMinMillis + rng.Intn(steps)*ElectionTimeoutStepMillis
	return time.Duration(chosen) * time.Millisecond
}
