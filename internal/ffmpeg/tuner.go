// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/metrics"
	"github.com/ManuGH/restreamer/internal/state"
)

// VolumeTuner adjusts the volume filter of a running child without a
// restart.
type VolumeTuner interface {
	Tune(track uuid.UUID, port uint16, vol state.Volume)
}

// ZMQTuner talks to the azmq control socket a child binds per audio track.
// Requests are fire-and-forget: a failed tune is only logged, since the
// descriptor caches the volume and re-applies it on the next restart.
type ZMQTuner struct {
	logger  zerolog.Logger
	limiter *rate.Limiter
	timeout time.Duration
}

// NewZMQTuner creates a tuner. The limiter bounds the burst of goroutines a
// rapid volume drag can produce.
func NewZMQTuner() *ZMQTuner {
	return &ZMQTuner{
		logger:  log.WithComponent("tuner"),
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		timeout: 5 * time.Second,
	}
}

// Tune sends "volume@<track> volume <fraction>" to the control socket on
// 127.0.0.1:<port> in the background.
func (t *ZMQTuner) Tune(track uuid.UUID, port uint16, vol state.Volume) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		if err := t.limiter.Wait(ctx); err != nil {
			metrics.RecordTune("dropped")
			return
		}
		if err := t.send(ctx, track, port, vol); err != nil {
			metrics.RecordTune("error")
			t.logger.Error().Err(err).
				Str(log.FieldOutput, track.String()).
				Int(log.FieldPort, int(port)).
				Msg("volume tune failed")
			return
		}
		metrics.RecordTune("ok")
	}()
}

func (t *ZMQTuner) send(ctx context.Context, track uuid.UUID, port uint16, vol state.Volume) error {
	addr := fmt.Sprintf("tcp://127.0.0.1:%d", port)

	socket := zmq4.NewReq(ctx)
	defer func() { _ = socket.Close() }()

	if err := socket.Dial(addr); err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	payload := fmt.Sprintf("volume@%s volume %s", track, vol.Fraction())
	if err := socket.Send(zmq4.NewMsgString(payload)); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}

	reply, err := socket.Recv()
	if err != nil {
		return fmt.Errorf("recv from %s: %w", addr, err)
	}
	if got := string(reply.Bytes()); got != "0 Success" {
		return fmt.Errorf("unexpected reply from %s: %q", addr, got)
	}
	return nil
}
