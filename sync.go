package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// modTimeLayout is fixed width and zero padded, so lexicographic order of two
// formatted times is their chronological order.
const modTimeLayout = "2006-01-02 15:04:05"

type Comparison int

const (
	NotPresent Comparison = iota
	Stale
	Current
)

func (c Comparison) String() string {
	switch c {
	case NotPresent:
		return "not-present"
	case Stale:
		return "stale"
	case Current:
		return "current"
	}
	return fmt.Sprintf("Comparison(%d)", int(c))
}

type Decision int

const (
	Skip Decision = iota
	Upload
)

// formatModTime truncates to whole seconds in UTC. Changes made within the
// same second as the previous upload are therefore not detected.
func formatModTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(modTimeLayout) + "+00:00"
}

// compareModTimes reports how the remote copy relates to a local file last
// modified at local.
func compareModTimes(local time.Time, remote RemoteLookup) (Comparison, error) {
	switch remote.Status {
	case LookupNotFound:
		return NotPresent, nil
	case LookupFailed:
		return NotPresent, remote.Err
	}

	if formatModTime(remote.Object.LastModified) < formatModTime(local) {
		return Stale, nil
	}
	return Current, nil
}

// decide uploads absent and stale files. A forbidden probe still uploads and
// the put decides; any other failed probe is returned.
func decide(local time.Time, remote RemoteLookup) (Decision, Comparison, error) {
	comparison, err := compareModTimes(local, remote)
	if err != nil {
		if errors.Is(err, ErrBucketForbidden) {
			return Upload, comparison, nil
		}
		return Skip, comparison, err
	}
	if comparison == Current {
		return Skip, comparison, nil
	}
	return Upload, comparison, nil
}

type ResultMap struct {
	Upload  map[string]error
	Marker  map[string]error
	List    map[string]error
	Skipped []string
	lock    *sync.Mutex
}

func NewResultMap() *ResultMap {
	return &ResultMap{
		Upload:  make(map[string]error),
		Marker:  make(map[string]error),
		List:    make(map[string]error),
		Skipped: make([]string, 0),
		lock:    new(sync.Mutex),
	}
}

func (r *ResultMap) AddUploadResult(key string, result error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Upload[key] = result
}

func (r *ResultMap) AddMarkerResult(key string, result error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Marker[key] = result
}

// AddListResult records a directory that could not be listed. Only failures
// are kept.
func (r *ResultMap) AddListResult(prefix string, result error) {
	if result == nil {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.List[prefix] = result
}

func (r *ResultMap) AddSkipped(key string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Skipped = append(r.Skipped, key)
}

// Uploaded returns the keys whose upload succeeded, sorted.
func (r *ResultMap) Uploaded() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	keys := make([]string, 0, len(r.Upload))
	for key, err := range r.Upload {
		if err == nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

type Failure struct {
	Action string
	Key    string
	Error  error
}

// Failures lists every failed upload, marker put and directory listing,
// sorted by key.
func (r *ResultMap) Failures() []Failure {
	r.lock.Lock()
	defer r.lock.Unlock()
	failures := make([]Failure, 0)
	for key, err := range r.Upload {
		if err != nil {
			failures = append(failures, Failure{Action: "Upload", Key: key, Error: err})
		}
	}
	for key, err := range r.Marker {
		if err != nil {
			failures = append(failures, Failure{Action: "Marker", Key: key, Error: err})
		}
	}
	for key, err := range r.List {
		failures = append(failures, Failure{Action: "List", Key: key, Error: err})
	}
	sort.SliceStable(failures, func(i, j int) bool {
		if failures[i].Key != failures[j].Key {
			return failures[i].Key < failures[j].Key
		}
		return failures[i].Action < failures[j].Action
	})
	return failures
}

func (r *ResultMap) Summary() string {
	r.lock.Lock()
	markers, skipped := len(r.Marker), len(r.Skipped)
	r.lock.Unlock()
	return fmt.Sprintf("%d uploaded, %d skipped, %d directory markers, %d failed",
		len(r.Uploaded()), skipped, markers, len(r.Failures()))
}

type SyncOptions struct {
	SourceFolder string
	Bucket       string
	Exclude      []string
	DryRun       bool
	Concurrency  int
}

// Syncer mirrors one local tree into one bucket. Walking is always sequential;
// with Concurrency > 1 the per-file probe and upload run on a bounded group.
type Syncer struct {
	client   BucketClient
	fsys     fs.FS
	opts     SyncOptions
	exclude  *regexp.Regexp
	notifier Notifier
	lock     sync.Mutex
}

func NewSyncer(client BucketClient, fsys fs.FS, opts SyncOptions, notifier Notifier) (*Syncer, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	var exclude *regexp.Regexp
	if len(opts.Exclude) != 0 {
		var err error
		exclude, err = regexp.Compile(strings.Join(opts.Exclude, "|"))
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern: %w", err)
		}
	}

	return &Syncer{
		client:   client,
		fsys:     fsys,
		opts:     opts,
		exclude:  exclude,
		notifier: notifier,
	}, nil
}

func (s *Syncer) excluded(rel string) bool {
	return s.exclude != nil && s.exclude.MatchString(excludeName(rel))
}

// Run performs one full pass. Per-file failures are recorded in the returned
// ResultMap and do not stop the walk; only a forbidden bucket, a failure to
// list the root, or cancellation end it early.
func (s *Syncer) Run(ctx context.Context) (*ResultMap, error) {
	resultMap := NewResultMap()
	if !s.lock.TryLock() {
		log.Warn("Another sync routine is already running. Skipping.")
		return resultMap, ErrSyncInProgress
	}
	defer s.lock.Unlock()

	log.Info(fmt.Sprintf("Sync starting for %s -> %s.", s.opts.SourceFolder, s.opts.Bucket))
	syncStartTime := time.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Concurrency)

	walkErr := s.walk(groupCtx, "", group, resultMap)
	waitErr := group.Wait()

	err := walkErr
	if waitErr != nil {
		err = waitErr
	}
	if err == nil {
		err = ctx.Err()
	}

	duration := time.Since(syncStartTime)
	log.Info(fmt.Sprintf("Sync complete for %s. Took %s: %s", s.opts.SourceFolder, duration, resultMap.Summary()))

	if s.notifier != nil {
		if notifyErr := s.notifier.NotifySyncResults(ctx, s.opts, resultMap, err); notifyErr != nil {
			log.Warn(fmt.Sprintf("Error publishing sync results: %s", notifyErr))
		}
	}

	return resultMap, err
}

// walk syncs the directory at prefix: marker first, then its files, then each
// sub-directory.
func (s *Syncer) walk(ctx context.Context, prefix string, group *errgroup.Group, results *ResultMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if prefix != "" {
		if err := s.ensureMarker(ctx, prefix, results); err != nil {
			return err
		}
	}

	listing, listErr := listDirectory(s.fsys, prefix)
	if listErr != nil {
		if prefix == "" {
			return fmt.Errorf("Error walking local directory: %w", listErr)
		}
		log.Warn(fmt.Sprintf("Unable to list %s: %s", prefix, listErr))
		results.AddListResult(prefix, listErr)
		return nil
	}

	for _, entry := range listing.Files {
		if s.excluded(entry.Path) {
			log.Info(fmt.Sprintf("%s matches exclusion list. skipping...", entry.Path))
			continue
		}
		entry := entry
		if s.opts.Concurrency == 1 {
			if err := s.syncFile(ctx, entry, results); err != nil {
				return err
			}
			continue
		}
		group.Go(func() error {
			return s.syncFile(ctx, entry, results)
		})
	}

	for _, dir := range listing.Dirs {
		if s.excluded(dir) {
			log.Info(fmt.Sprintf("%s matches exclusion list. skipping...", dir))
			continue
		}
		if err := s.walk(ctx, dir, group, results); err != nil {
			return err
		}
	}

	return nil
}

func (s *Syncer) ensureMarker(ctx context.Context, prefix string, results *ResultMap) error {
	if s.opts.DryRun {
		log.Info(fmt.Sprintf("[dry-run] would create directory marker %s", prefix))
		results.AddMarkerResult(prefix, nil)
		return nil
	}

	putErr := s.client.PutObject(ctx, s.opts.Bucket, prefix, bytes.NewReader(nil))
	results.AddMarkerResult(prefix, putErr)
	if putErr != nil {
		log.Warn(fmt.Sprintf("Error creating directory marker %s: %s", prefix, putErr))
		if errors.Is(putErr, ErrBucketForbidden) {
			return putErr
		}
	}
	return nil
}

// syncFile returns an error only when the whole run has to stop.
func (s *Syncer) syncFile(ctx context.Context, entry LocalEntry, results *ResultMap) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := entry.Path
	if entry.Err != nil {
		log.Warn(fmt.Sprintf("Unable to read %s: %s", key, entry.Err))
		results.AddUploadResult(key, entry.Err)
		return nil
	}

	remote := s.client.HeadObject(ctx, s.opts.Bucket, key)
	decision, comparison, err := decide(entry.Info.ModTime(), remote)
	if err != nil {
		log.Warn(fmt.Sprintf("Unable to fetch remote metadata for %s: %s", key, err))
		results.AddUploadResult(key, err)
		return nil
	}

	if decision == Skip {
		log.Debug(fmt.Sprintf("%s is in sync, no action required", key))
		results.AddSkipped(key)
		return nil
	}

	if s.opts.DryRun {
		log.Info(fmt.Sprintf("[dry-run] would upload %s (%s)", key, comparison))
		results.AddUploadResult(key, nil)
		return nil
	}

	uploadErr := s.upload(ctx, key)
	results.AddUploadResult(key, uploadErr)
	if uploadErr != nil {
		log.Warn(fmt.Sprintf("Error uploading %s: %s", key, uploadErr))
		if errors.Is(uploadErr, ErrBucketForbidden) {
			return uploadErr
		}
		return nil
	}

	log.Info(fmt.Sprintf("Uploaded file %s (%s)", key, comparison))
	return nil
}

// upload streams the file at key to the same key in the bucket. The handle is
// closed whatever the outcome.
func (s *Syncer) upload(ctx context.Context, key string) error {
	fd, openErr := s.fsys.Open(key)
	if openErr != nil {
		return openErr
	}
	defer fd.Close()

	return s.client.PutObject(ctx, s.opts.Bucket, key, fd)
}
