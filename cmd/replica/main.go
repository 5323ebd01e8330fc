// Command replica launches one consensus replica: `replica <port> <id>
// <other_id_1> <other_id_2> ...`. It is deliberately thin - CLI argument
// parsing and process bootstrap are an external collaborator, not part
// of the consensus engine - following the teacher's own split between a
// small flag-driven main and the real work living under internal/.
package main

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/raftkv/replica/internal/consensus"
	"github.com/raftkv/replica/internal/observability"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: replica <port> <id> <other_id_1> [other_id_2 ...]")
		os.Exit(1)
	}

	simulatorPort, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %v\n", os.Args[1], err)
		os.Exit(1)
	}
	thisID := os.Args[2]
	otherIDs := os.Args[3:]

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Str("id", thisID).
		Logger()

	electionTimeout := consensus.RandomElectionTimeout(rand.New(rand.NewSource(int64(os.Getpid()))))
	fmt.Printf("Initialized with election timeout: %s\n", electionTimeout)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open udp socket")
	}
	defer conn.Close()

	engine := consensus.NewEngine(conn, simulatorPort, thisID, otherIDs, electionTimeout, logger)

	metrics := observability.NewMetrics()
	sidecar := observability.NewServer(metrics, logger)
	engine.OnStatus(sidecar.UpdateStatus)
	engine.OnClientResult(func(success bool, latency time.Duration) {
		if success {
			metrics.RecordSuccess(latency)
		} else {
			metrics.RecordFailure()
		}
	})

	httpPort := simulatorPort + 1000
	go func() {
		addr := fmt.Sprintf(":%d", httpPort)
		if err := sidecar.Start(addr); err != nil {
			logger.Error().Err(err).Msg("observability sidecar stopped")
		}
	}()

	if err := engine.InitializeSimulator(); err != nil {
		logger.Fatal().Err(err).Msg("failed to send initial hello")
	}

	engine.Run()
}
