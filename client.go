package main

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidBucketName  = errors.New("invalid bucket name")
	ErrBucketForbidden    = errors.New("bucket access forbidden")
	ErrBucketNotFound     = errors.New("bucket does not exist")
	ErrBucketNameConflict = errors.New("bucket name is not available")
	ErrObjectNotFound     = errors.New("object does not exist")
	ErrSyncInProgress     = errors.New("Unable to acquire sync lock")
)

// BucketClient is the subset of an object store the sync needs. Implementations
// classify their errors against the Err* sentinels above.
type BucketClient interface {
	HeadBucket(ctx context.Context, bucket string) error
	CreateBucket(ctx context.Context, bucket string, region string) error
	HeadObject(ctx context.Context, bucket string, key string) RemoteLookup
	PutObject(ctx context.Context, bucket string, key string, body io.Reader) error
}

type ObjectInfo struct {
	LastModified time.Time
	Size         int64
}

type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupFailed
)

// RemoteLookup is the outcome of a metadata probe for a single key. A failed
// probe is never reported as NotFound.
type RemoteLookup struct {
	Status LookupStatus
	Object ObjectInfo
	Err    error
}

func Found(info ObjectInfo) RemoteLookup {
	return RemoteLookup{Status: LookupFound, Object: info}
}

func NotFound() RemoteLookup {
	return RemoteLookup{Status: LookupNotFound}
}

func LookupError(err error) RemoteLookup {
	return RemoteLookup{Status: LookupFailed, Err: err}
}
