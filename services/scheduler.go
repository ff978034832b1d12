// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSettlementScheduler runs the recurring maintenance jobs: auction
// settlement every minute and a daily sweep of expired timed effects.
func (a *AuctionService) StartSettlementScheduler(effects *EffectManager) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: close auctions past their deadline
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.Settle(ctx); err != nil {
				log.Printf("[Scheduler] auction settlement: %v", err)
			}
		}),
	)

	// Daily: drop effect rows that expired; reads treat them as inactive
	// either way, this just keeps the table small
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := effects.PurgeExpired(ctx)
			if err != nil {
				log.Printf("[Scheduler] effect purge: %v", err)
				return
			}
			if n > 0 {
				log.Printf("🧹 Purged %d expired effects", n)
			}
		}),
	)
}
