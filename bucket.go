package main

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	log "github.com/sirupsen/logrus"
)

type BucketStatus int

const (
	BucketOK BucketStatus = iota
	BucketForbidden
	BucketNotFound
	BucketInvalidName
)

func (b BucketStatus) String() string {
	switch b {
	case BucketOK:
		return "ok"
	case BucketForbidden:
		return "forbidden"
	case BucketNotFound:
		return "not-found"
	case BucketInvalidName:
		return "invalid-name"
	}
	return fmt.Sprintf("BucketStatus(%d)", int(b))
}

// isUppercaseName reports whether name has at least one cased letter and no
// lowercase ones. This is a rough stand-in for the store's naming rules, which
// are enforced server-side.
func isUppercaseName(name string) bool {
	cased := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// ResolveBucket classifies a candidate bucket name. A non-nil error means the
// probe failed for a reason outside the four known states.
func ResolveBucket(ctx context.Context, client BucketClient, name string) (BucketStatus, error) {
	if name == "" || isUppercaseName(name) {
		return BucketInvalidName, nil
	}

	headErr := client.HeadBucket(ctx, name)
	switch {
	case headErr == nil:
		return BucketOK, nil
	case errors.Is(headErr, ErrBucketForbidden):
		return BucketForbidden, nil
	case errors.Is(headErr, ErrBucketNotFound):
		return BucketNotFound, nil
	case errors.Is(headErr, ErrInvalidBucketName):
		return BucketInvalidName, nil
	}

	log.Warn(fmt.Sprintf("Bucket probe for %s failed: %s", name, headErr))
	return BucketInvalidName, fmt.Errorf("probe bucket %s: %w", name, headErr)
}

// CreateBucket creates name in region. Naming conflicts are returned to the
// caller untouched; nothing is retried.
func CreateBucket(ctx context.Context, client BucketClient, name, region string) error {
	if err := client.CreateBucket(ctx, name, region); err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	log.Info(fmt.Sprintf("Created bucket %s in %s", name, region))
	return nil
}
