package consensus

import (
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/raftkv/replica/internal/protocol"
	"github.com/raftkv/replica/internal/store"
)

// Base holds the context shared by every role (spec.md 3's "Replica
// context"): identity, peers, the UDP socket, the kv projection, and the
// timers. It is carried forward unchanged across role transitions, the Go
// equivalent of the source's dataclasses.replace(self, current_state=...)
// pattern for the fields that aren't part of the role-specific state.
type Base struct {
	ThisID        string
	OtherIDs      map[string]struct{}
	SimulatorPort int

	Conn          *net.UDPConn
	SimulatorAddr *net.UDPAddr

	Store *store.Store

	NoMessageTimeout  time.Duration
	LastAppendEntries time.Time

	Logger zerolog.Logger
}

// redirectOrFatal answers a client's get/put with a redirect to the
// recognized leader, or - if no leader has been recognized yet - treats it
// as the unrecoverable NotLeader/RuntimeError case from spec.md 7.
func redirectOrFatal(logger zerolog.Logger, thisID, leaderVote string, req protocol.Header, client protocol.ClientFields) protocol.Message {
	if leaderVote == "" {
		logger.Fatal().Err(ErrLeaderUnknown).Msg("client request arrived with no leader recognized")
	}
	return protocol.RedirectResponse{
		Header: protocol.Header{
			Src:    thisID,
			Dst:    req.Src,
			Leader: leaderVote,
			Type:   protocol.KindRedirect,
		},
		ClientFields: client,
	}
}

// Role is implemented by Follower, Candidate, and Leader. Each handler
// returns the (possibly nil) response to send and the next role the
// engine should hold - role objects are treated as immutable: a handler
// builds a new value rather than mutating its receiver in place.
type Role interface {
	Timeout() time.Duration
	HandleTimeout() (protocol.Message, Role)
	HandleMessage(msg protocol.Message) (protocol.Message, Role)
	Status() Status
}

// Status is a read-only snapshot published after every loop iteration for
// the observability sidecar to read (spec.md/SPEC_FULL 4.7, 5) - it never
// shares the live role value across goroutines.
type Status struct {
	Role            string
	Term            int
	ID              string
	LogLength       int
	CommitIndex     int
	AppliedIndex    int
	LeaderVote      string
	KeyCount        int
}

// Engine owns the socket and the single live role value, and runs the
// event loop described in spec.md 4.2.
type Engine struct {
	role Role

	conn          *net.UDPConn
	simulatorAddr *net.UDPAddr

	logger zerolog.Logger

	onStatus       func(Status)
	onClientResult func(success bool, latency time.Duration)
}

// NewEngine constructs the engine with a brand-new Follower at term 0, as
// every replica starts (spec.md 3's Lifecycle).
func NewEngine(conn *net.UDPConn, simulatorPort int, thisID string, otherIDs []string, electionTimeout time.Duration, logger zerolog.Logger) *Engine {
	others := make(map[string]struct{}, len(otherIDs))
	for _, id := range otherIDs {
		others[id] = struct{}{}
	}

	base := Base{
		ThisID:            thisID,
		OtherIDs:          others,
		SimulatorPort:     simulatorPort,
		Conn:              conn,
		SimulatorAddr:     &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: simulatorPort},
		Store:             store.NewStore(),
		NoMessageTimeout:  electionTimeout,
		LastAppendEntries: EpochStart,
		Logger:            logger,
	}

	follower := &Follower{Base: base}
	return &Engine{role: follower, conn: conn, simulatorAddr: base.SimulatorAddr, logger: logger}
}

// OnStatus registers a callback invoked with a Status snapshot after every
// loop iteration, used to feed the observability sidecar.
func (e *Engine) OnStatus(fn func(Status)) {
	e.onStatus = fn
}

// OnClientResult registers a callback invoked after every get/put is
// handled, reporting whether it succeeded and how long handling took -
// used to feed the observability sidecar's request metrics (SPEC_FULL
// 4.7), the Go-native replacement for the teacher's TCP-handler-side
// Metrics.RecordSuccess/RecordFailure calls.
func (e *Engine) OnClientResult(fn func(success bool, latency time.Duration)) {
	e.onClientResult = fn
}

// InitializeSimulator sends the mandatory first datagram (spec.md 4.2,
// 6): a broadcast hello, before anything else is ever sent.
func (e *Engine) InitializeSimulator() error {
	f, ok := e.role.(*Follower)
	if !ok {
		// only ever called once, immediately after NewEngine
		return nil
	}
	hello := protocol.HelloMessage{Header: protocol.Header{
		Src:    f.ThisID,
		Dst:    protocol.BroadcastDestination,
		Leader: protocol.BroadcastDestination,
		Type:   protocol.KindHello,
	}}
	e.logger.Info().Str("id", f.ThisID).Msg("starting up")
	err := e.send(hello)
	if err == nil {
		e.logger.Debug().Interface("message", hello).Msg("sent hello message")
	}
	return err
}

// HandleNextState blocks for up to the current role's timeout, dispatches
// the resulting event, sends any emitted response, and advances to the
// next role. Decode failures are fatal and terminate the process
// (spec.md 7).
func (e *Engine) HandleNextState() {
	timeout := e.role.Timeout()
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		e.logger.Fatal().Err(err).Msg("failed to set read deadline")
	}

	buf := make([]byte, 65535)
	n, _, err := e.conn.ReadFromUDP(buf)

	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			response, next := e.role.HandleTimeout()
			e.advance(response, next)
			return
		}
		e.logger.Fatal().Err(err).Msg("socket read failed")
		return
	}

	msg, decodeErr := protocol.Decode(buf[:n])
	if decodeErr != nil {
		// DecodeError is fatal per spec.md 7 - the simulator and operator
		// need to notice a malformed datagram rather than limp along.
		e.logger.Fatal().Err(decodeErr).Msg("failed to decode datagram")
		os.Exit(1)
		return
	}

	start := time.Now()
	response, next := e.role.HandleMessage(msg)

	if e.onClientResult != nil {
		switch msg.(type) {
		case protocol.GetRequest, protocol.PutRequest:
			_, failed := response.(protocol.FailResponse)
			e.onClientResult(!failed, time.Since(start))
		}
	}

	e.advance(response, next)
}

func (e *Engine) advance(response protocol.Message, next Role) {
	if response != nil {
		if err := e.send(response); err != nil {
			e.logger.Error().Err(err).Msg("failed to send response")
		}
	}
	e.role = next
	if e.onStatus != nil {
		e.onStatus(e.role.Status())
	}
}

func (e *Engine) send(messages ...protocol.Message) error {
	for _, m := range messages {
		if m == nil {
			continue
		}
		encoded, err := protocol.Encode(m)
		if err != nil {
			return err
		}
		if _, err := e.conn.WriteToUDP(encoded, e.simulatorAddr); err != nil {
			return err
		}
	}
	return nil
}

// Run loops HandleNextState forever, matching launch.py's `while replica:
// replica = replica.handle_next_state()`.
func (e *Engine) Run() {
	for {
		e.HandleNextState()
	}
}
