package workers

import (
	"context"
	"log"
	"time"

	"credit-hub-system/services"
)

// RunInvalidationListener subscribes to the account invalidation channel
// and drops the per-process cached copy of every account another session
// touched. It reconnects on subscription errors with a short backoff so
// a Redis blip never permanently detaches this process from the stream.
func RunInvalidationListener(ctx context.Context, sync *services.SyncCoordinator) {
	log.Println("🔁 Starting account invalidation listener...")
	for {
		if err := listenOnce(ctx, sync); err != nil {
			log.Printf("❌ Invalidation subscription lost: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Println("⏹️ Invalidation listener stopped")
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func listenOnce(ctx context.Context, sync *services.SyncCoordinator) error {
	sub := sync.RDB.Subscribe(ctx, services.InvalidateChannel)
	defer sub.Close()

	// Receive forces the SUBSCRIBE round-trip so errors surface here
	// instead of silently on the channel.
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			sync.DropLocal(msg.Payload)
		}
	}
}
