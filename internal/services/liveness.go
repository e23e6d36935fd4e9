package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"llmhub/internal/config"
	"llmhub/internal/models"
	"llmhub/internal/registry"
)

// StaleAfterIntervals is how many sweep intervals a participant may go
// without a health check before it is marked offline.
const StaleAfterIntervals = 3

// LivenessMonitor periodically marks participants with an old lastSeen as
// offline and announces them to the room.
type LivenessMonitor struct {
	store    registry.Store
	bus      Broadcaster
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewLivenessMonitor returns a monitor sweeping every interval. A
// non-positive interval selects config.DefaultHealthCheckInterval.
func NewLivenessMonitor(store registry.Store, bus Broadcaster, interval time.Duration, log logrus.FieldLogger) *LivenessMonitor {
	if interval <= 0 {
		interval = config.DefaultHealthCheckInterval
	}
	return &LivenessMonitor{
		store:    store,
		bus:      bus,
		interval: interval,
		timeout:  StaleAfterIntervals * interval,
		log:      log.WithField("component", "liveness"),
	}
}

func (m *LivenessMonitor) Timeout() time.Duration {
	return m.timeout
}

// Sweep runs one staleness pass. A panic inside the pass is logged and
// reported as an error so the caller's ticker keeps going.
func (m *LivenessMonitor) Sweep(now time.Time) (stale []models.StaleParticipant, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("liveness sweep panicked: %v", r)
			m.log.WithField("panic", r).Error("liveness sweep failed")
		}
	}()

	stale = m.store.SweepStale(now, m.timeout)
	for _, s := range stale {
		room, ok := m.store.Get(s.RoomID)
		if !ok {
			continue
		}
		m.log.WithFields(logrus.Fields{
			"room":        room.Code,
			"participant": s.ParticipantID,
		}).Info("participant went offline")
		m.bus.Broadcast(models.ParticipantOffline{ParticipantID: s.ParticipantID}, room.Code)
	}
	return stale, nil
}

// Run sweeps every interval until ctx is done.
func (m *LivenessMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.WithFields(logrus.Fields{
		"interval": m.interval,
		"timeout":  m.timeout,
	}).Debug("liveness monitor started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			_, _ = m.Sweep(now)
		}
	}
}
