package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Alturino/shopbot/internal/log"
)

// Reaper periodically deletes expired carts from a Store. It is advisory
// cleanup: reads already treat expired carts as absent, so a missed tick
// never affects correctness.
type Reaper struct {
	store    Store
	interval time.Duration
}

func NewReaper(store Store, interval time.Duration) *Reaper {
	return &Reaper{store: store, interval: interval}
}

// Run blocks until c is cancelled, reaping on every tick.
func (r *Reaper) Run(c context.Context) error {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "Reaper Run").
		Dur("interval", r.interval).
		Logger()

	logger.Info().Msg("starting cart reaper")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Done():
			logger.Info().Msg("stopping cart reaper")
			return c.Err()
		case <-ticker.C:
			reaped, err := r.store.ReapExpired(c)
			if err != nil {
				err = fmt.Errorf("failed reaping expired carts with error=%w", err)
				logger.Error().Err(err).Msg(err.Error())
				continue
			}
			if reaped > 0 {
				logger.Info().Int(log.KeyReapedCarts, reaped).Msg("reaped expired carts")
			}
		}
	}
}
