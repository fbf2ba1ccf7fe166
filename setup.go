package main

import (
	"context"
	"errors"
	"fmt"
)

type SetupState int

const (
	AwaitingCredentials SetupState = iota
	AwaitingBucketName
	AwaitingBucketResolution
	Ready
	Failed
)

func (s SetupState) String() string {
	switch s {
	case AwaitingCredentials:
		return "awaiting-credentials"
	case AwaitingBucketName:
		return "awaiting-bucket-name"
	case AwaitingBucketResolution:
		return "awaiting-bucket-resolution"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("SetupState(%d)", int(s))
}

// Setup gates the sync: it holds the session and target bucket once they have
// been accepted. Input comes from whoever drives the transitions, so the same
// machine serves a terminal, a config file, or a test.
type Setup struct {
	State       SetupState
	Credentials SessionCredentials
	Client      BucketClient
	Bucket      string
	Region      string
	Err         error

	newSession SessionFactory
}

func NewSetup(newSession SessionFactory, region string) *Setup {
	return &Setup{
		State:      AwaitingCredentials,
		Region:     region,
		newSession: newSession,
	}
}

func (s *Setup) expect(state SetupState) error {
	if s.State != state {
		return fmt.Errorf("setup is %s, not %s", s.State, state)
	}
	return nil
}

// SubmitCredentials moves to AwaitingBucketName when the key pair yields a
// session. Rejected credentials leave the state unchanged.
func (s *Setup) SubmitCredentials(ctx context.Context, creds SessionCredentials) error {
	if err := s.expect(AwaitingCredentials); err != nil {
		return err
	}

	client, err := ValidateCredentials(ctx, creds, s.newSession)
	if err != nil {
		return err
	}

	s.Credentials = creds
	s.Client = client
	s.State = AwaitingBucketName
	return nil
}

// SubmitBucketName probes name. An existing bucket makes the setup Ready, an
// absent one moves it to AwaitingBucketResolution; anything else is returned
// and the machine keeps waiting for a name.
func (s *Setup) SubmitBucketName(ctx context.Context, name string) error {
	if err := s.expect(AwaitingBucketName); err != nil {
		return err
	}

	status, err := ResolveBucket(ctx, s.Client, name)
	if err != nil {
		return err
	}

	switch status {
	case BucketOK:
		s.Bucket = name
		s.State = Ready
	case BucketNotFound:
		s.Bucket = name
		s.State = AwaitingBucketResolution
	case BucketForbidden:
		return ErrBucketForbidden
	case BucketInvalidName:
		return ErrInvalidBucketName
	}
	return nil
}

// ResolveBucket creates the pending bucket. On failure the candidate is dropped
// and a new name is required.
func (s *Setup) ResolveBucket(ctx context.Context) error {
	if err := s.expect(AwaitingBucketResolution); err != nil {
		return err
	}

	if err := CreateBucket(ctx, s.Client, s.Bucket, s.Region); err != nil {
		s.Bucket = ""
		s.State = AwaitingBucketName
		return err
	}

	s.State = Ready
	return nil
}

func (s *Setup) Fail(err error) {
	s.State = Failed
	s.Err = err
}

// Preload feeds values known up front (config file, environment) into the
// machine. Rejected values are reported through p and left for RunSetup to
// ask for again.
func (s *Setup) Preload(ctx context.Context, creds SessionCredentials, bucket string, p Prompter) {
	if s.State == AwaitingCredentials && (creds.AccessKeyID != "" || creds.SecretAccessKey != "") {
		if err := s.SubmitCredentials(ctx, creds); err != nil {
			p.Say(credentialsMessage)
		}
	}
	if s.State == AwaitingBucketName && bucket != "" {
		if err := s.SubmitBucketName(ctx, bucket); err != nil {
			p.Say(bucketErrorMessage(bucket, err))
		}
	}
}

const credentialsMessage = "Error: The credentials you entered are invalid, please try again!"

func bucketErrorMessage(name string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidBucketName):
		return fmt.Sprintf("Error: Invalid Bucket name '%s'. Please try again!", name)
	case errors.Is(err, ErrBucketForbidden):
		return fmt.Sprintf("Error: The bucket '%s' has forbidden access. Please try a different bucket!", name)
	case errors.Is(err, ErrBucketNameConflict):
		return fmt.Sprintf("Error: The Bucket '%s' is already taken. Please enter a different bucket name!", name)
	}
	return fmt.Sprintf("Error: The bucket '%s' could not be used (%s). Please try again!", name, err)
}

// RunSetup drives s until it is Ready or Failed. A prompter error (EOF on a
// scripted prompter, or ctx cancelled while a prompt is waiting) fails the
// setup.
func RunSetup(ctx context.Context, s *Setup, p Prompter) error {
	for {
		if err := ctx.Err(); err != nil && s.State != Ready {
			s.Fail(err)
		}

		switch s.State {
		case AwaitingCredentials:
			accessKeyID, err := p.Ask(ctx, "Enter your AWS Access Key ID: ")
			if err != nil {
				s.Fail(fmt.Errorf("read access key id: %w", err))
				continue
			}
			secretKey, err := p.AskSecret(ctx, "Enter your AWS Secret Access Key: ")
			if err != nil {
				s.Fail(fmt.Errorf("read secret access key: %w", err))
				continue
			}
			creds := SessionCredentials{AccessKeyID: accessKeyID, SecretAccessKey: secretKey}
			if err := s.SubmitCredentials(ctx, creds); err != nil {
				p.Say(credentialsMessage)
			}

		case AwaitingBucketName:
			name, err := p.Ask(ctx, "Please enter the bucket name you'd like to backup to: ")
			if err != nil {
				s.Fail(fmt.Errorf("read bucket name: %w", err))
				continue
			}
			if err := s.SubmitBucketName(ctx, name); err != nil {
				p.Say(bucketErrorMessage(name, err))
			}

		case AwaitingBucketResolution:
			name := s.Bucket
			if err := s.ResolveBucket(ctx); err != nil {
				p.Say(bucketErrorMessage(name, err))
			}

		case Ready:
			return nil

		case Failed:
			return s.Err
		}
	}
}
