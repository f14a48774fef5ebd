// Package heartbeat announces that the rover is alive and, on every beat,
// asks the rover service to refresh the readings named in the config.
//
// Polls go out as fire-and-forget rover/get/<what> requests so that only
// the goroutine running rover.Serve touches the hardware.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"rovercode-go/bus"
	"rovercode-go/services/config"
	"rovercode-go/services/rover"
	"rovercode-go/types"
	"rovercode-go/x/timex"
)

var (
	TopicConfig = bus.T("config", "heartbeat")
	TopicBeat   = bus.T("rover", "heartbeat")
)

type Service struct {
	conn     *bus.Connection
	clock    timex.Clock
	log      *slog.Logger
	start    int64
	seq      uint64
	interval time.Duration
	poll     []string
}

// New prepares a heartbeat with the given initial settings. A retained
// config/heartbeat message replaces them once Run starts.
func New(conn *bus.Connection, cfg config.HeartbeatConfig, clock timex.Clock, log *slog.Logger) *Service {
	if clock == nil {
		clock = timex.Real{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Service{conn: conn, clock: clock, log: log.With("svc", "heartbeat"), start: clock.NowNanos()}
	s.apply(cfg)
	return s
}

// apply reports whether the interval changed.
func (s *Service) apply(cfg config.HeartbeatConfig) bool {
	iv := time.Duration(cfg.IntervalMs) * time.Millisecond
	if iv < 10*time.Millisecond {
		iv = time.Second
	}
	s.poll = append([]string(nil), cfg.Poll...)
	changed := iv != s.interval
	s.interval = iv
	return changed
}

// Interval is the current beat period.
func (s *Service) Interval() time.Duration { return s.interval }

// Beat publishes one heartbeat and fires the configured polls.
func (s *Service) Beat() types.Heartbeat {
	s.seq++
	hb := types.Heartbeat{
		Seq:      s.seq,
		UptimeMs: (s.clock.NowNanos() - s.start) / int64(time.Millisecond),
		Polled:   s.poll,
	}
	for _, what := range s.poll {
		s.conn.Publish(s.conn.NewMessage(rover.TopicGet.Append(what), nil, false))
	}
	s.conn.Publish(s.conn.NewMessage(TopicBeat, hb, false))
	return hb
}

// Run beats until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	cfgSub := s.conn.Subscribe(TopicConfig)
	defer s.conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping", "beats", s.seq)
			return nil
		case <-tick.C:
			hb := s.Beat()
			s.log.Debug("beat", "seq", hb.Seq, "uptime_ms", hb.UptimeMs)
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return nil
			}
			cfg, ok := msg.Payload.(config.HeartbeatConfig)
			if !ok {
				s.log.Warn("ignoring config", "payload", msg.Payload)
				continue
			}
			if s.apply(cfg) {
				tick.Reset(s.interval)
				s.log.Info("interval changed", "interval", s.interval)
			}
		}
	}
}
