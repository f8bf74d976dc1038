// Command pongclient is a small demonstration client wiring C1 (transport)
// and C6 (predictor/reconciler/time-sync) together against a live UDP
// netcode server. It stands in for the original's apps/loadgen bot, which
// is out of scope per §1 — this drives the prediction/reconciliation stack
// instead of just hammering input.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"

	"pongnet/pkg/logger"
	"pongnet/pkg/transport"
	"pongnet/source/client"
	"pongnet/source/server"
	"pongnet/source/snapshot"
	"pongnet/source/tickloop"
	"pongnet/source/world"
)

// Config is the client's env-only configuration (CLI flag parsing is out
// of scope per §1).
type Config struct {
	ServerAddr string  `env:"PONGCLIENT_SERVER_ADDR,default=127.0.0.1:40000"`
	TargetTPS  float64 `env:"PONGCLIENT_TARGET_TPS,default=60"`
	Direction  int32   `env:"PONGCLIENT_DIRECTION,default=1"`
}

func main() {
	logger.Banner("Pong demonstration client", "1.0.0")

	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		logger.Warn("pongclient: ConfigInvalid %v, falling back to defaults", err)
		cfg = Config{ServerAddr: "127.0.0.1:40000", TargetTPS: 60, Direction: 1}
	}

	serverAddr, err := net.ResolveUDPAddr("udp", cfg.ServerAddr)
	if err != nil {
		logger.Fatal("pongclient: cannot resolve server address %s: %v", cfg.ServerAddr, err)
	}

	t, err := transport.NewTransport(":0")
	if err != nil {
		logger.Fatal("pongclient: cannot open local socket: %v", err)
	}

	worldConfig := world.DefaultConfig()
	predictor := client.NewPredictor(worldConfig)
	reconciler := client.NewReconciler(client.DefaultHistorySize, client.DefaultEpsilon)
	timeSync := client.NewTimeSync(client.DefaultSmoothing, client.DefaultMaxSlew)
	decoder := snapshot.NewDecoder(snapshot.DefaultHistorySize)

	seeded := false
	var clientSeq uint32

	t.Start(func(peer *net.UDPAddr, tag uint8, payload []byte) {
		switch tag {
		case server.TagSnapshot:
			msg, err := server.DecodeSnapshot(payload)
			if err != nil {
				return
			}
			state, err := decoder.Apply(snapshot.Encoded{
				Tick: uint64(msg.Tick), IsKeyframe: msg.IsKeyframe,
				BaseTick: uint64(msg.BaseTick), Payload: msg.State,
			})
			if err != nil {
				logger.Debug("pongclient: %v, awaiting next keyframe", err)
				return
			}
			if !seeded {
				predictor.Reset(state)
				seeded = true
				return
			}
			result := reconciler.Reconcile(state)
			if result.Found && result.CorrectedTicks > 0 {
				logger.Info("pongclient: correction needed, drift=%.3f corrected_ticks=%d", result.PositionError, result.CorrectedTicks)
				predictor.Reset(state)
			}
		case server.TagServerAck:
			ack, err := server.DecodeServerAck(payload)
			if err != nil {
				return
			}
			timeSync.Observe(float64(clientSeq), float64(ack.ServerTick))
		}
	})

	loop := tickloop.New(cfg.TargetTPS)
	loop.Start(func(tick uint64, dtSeconds float64) {
		if !seeded {
			return
		}
		clientSeq++

		dx := int32(0)
		if cfg.Direction > 0 {
			dx = 1
		} else if cfg.Direction < 0 {
			dx = -1
		}

		input := server.EncodeInput(server.InputMessage{
			ClientSeq:   clientSeq,
			TimestampNs: uint64(time.Now().UnixNano()),
			DX:          dx,
		})
		_ = t.Send(serverAddr, server.TagInput, input, false)

		predicted, err := predictor.Predict(tick, dtSeconds, dx, 0)
		if err != nil {
			return
		}
		reconciler.RecordPrediction(predicted)

		t.Update()
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	logger.Warn("pongclient: shutting down")
	loop.Stop()
	_ = t.Stop()
}
