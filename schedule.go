package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

// scheduleSync runs syncer every interval minutes, starting immediately, until
// ctx is done or a run fails in a way that should end the program. Runs that
// would overlap a previous one are skipped by the syncer's lock. The results
// of the last completed run are returned; they are empty if none completed.
func scheduleSync(ctx context.Context, syncer *Syncer, interval int) (*ResultMap, error) {
	fatal := make(chan error, 1)

	var lastLock sync.Mutex
	last := NewResultMap()
	lastResults := func() *ResultMap {
		lastLock.Lock()
		defer lastLock.Unlock()
		return last
	}

	scheduler := gocron.NewScheduler(time.UTC)
	_, jobErr := scheduler.Every(interval).Minutes().Do(func() {
		results, err := syncer.Run(ctx)
		switch {
		case errors.Is(err, ErrSyncInProgress):
			return
		case errors.Is(err, ErrBucketForbidden):
			select {
			case fatal <- err:
			default:
			}
			return
		case err != nil:
			log.Error(fmt.Sprintf("Scheduled sync failed: %s", err))
			return
		}

		lastLock.Lock()
		last = results
		lastLock.Unlock()
		if failures := results.Failures(); len(failures) != 0 {
			log.Warn(fmt.Sprintf("Scheduled sync finished with %d failures", len(failures)))
		}
	})
	if jobErr != nil {
		return last, fmt.Errorf("schedule sync: %w", jobErr)
	}

	scheduler.StartAsync()
	defer scheduler.Stop()

	select {
	case <-ctx.Done():
		log.Info("Stopping scheduled sync")
		return lastResults(), nil
	case err := <-fatal:
		return lastResults(), err
	}
}
