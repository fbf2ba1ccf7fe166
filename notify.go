package main

import "context"

type Notifier interface {
	NotifySyncResults(ctx context.Context, opts SyncOptions, results *ResultMap, runErr error) error
}
