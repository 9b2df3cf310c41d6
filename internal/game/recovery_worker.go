package game

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRecoveryWorker schedules a job that replays settlement intents left
// unapplied by a crash or a failed credit. It stops when ctx is done.
func StartRecoveryWorker(ctx context.Context, e *Engine, interval time.Duration) (gocron.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("recovery interval must be positive, got %v", interval)
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(e.clock))
	if err != nil {
		return nil, fmt.Errorf("create recovery scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := e.RecoverPending(ctx)
			if err != nil {
				log.Printf("[RECOVERY] Replay incomplete: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[RECOVERY] Applied %d pending intents", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule recovery job: %w", err)
	}

	sched.Start()
	log.Printf("[RECOVERY] Recovery worker started (every %v)", interval)

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[RECOVERY] Scheduler shutdown: %v", err)
		}
		log.Println("[RECOVERY] Recovery worker stopped")
	}()
	return sched, nil
}
