package ws

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/rpsarena/backend/internal/events"
)

// StartEventSubscriber forwards match events published on Redis to the
// connected clients of this instance
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, events.Channel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] %s subscriber started", events.Channel)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[WS] %s subscriber stopped", events.Channel)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := events.Decode(msg.Payload)
				if err != nil {
					log.Printf("[WS] %v", err)
					continue
				}
				if err := hub.Deliver(ctx, ev); err != nil {
					log.Printf("[WS] deliver %s: %v", ev.Type, err)
				}
			}
		}
	}()
}
