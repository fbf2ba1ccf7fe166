package main

import (
	"context"
	"fmt"
)

// SessionCredentials live for one run and are never written anywhere.
type SessionCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c SessionCredentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// SessionFactory builds a client for a key pair.
type SessionFactory func(ctx context.Context, creds SessionCredentials) (BucketClient, error)

// ValidateCredentials rejects empty keys and otherwise tries to build a session.
// Success does not prove the keys are authorized: the store only checks them on
// the first real request, which is normally the bucket probe.
func ValidateCredentials(ctx context.Context, creds SessionCredentials, newSession SessionFactory) (BucketClient, error) {
	if !creds.Valid() {
		return nil, ErrInvalidCredentials
	}

	client, err := newSession(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	return client, nil
}
