package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockSession(client BucketClient) SessionFactory {
	return func(ctx context.Context, creds SessionCredentials) (BucketClient, error) {
		return client, nil
	}
}

func TestSetupHappyPath(t *testing.T) {
	mockClient := NewMockClient(nil)
	mockClient.BucketErrors["backups"] = nil
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil, "AKIA", "secret", "backups")

	err := RunSetup(context.Background(), setup, prompter)

	require.NoError(t, err)
	assert.Equal(t, Ready, setup.State)
	assert.Equal(t, "backups", setup.Bucket)
	assert.Equal(t, SessionCredentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"}, setup.Credentials)
	assert.Empty(t, prompter.Messages)
	assert.Empty(t, mockClient.CreateRequests)
}

func TestSetupRepromptsOnEmptyCredentials(t *testing.T) {
	mockClient := NewMockClient(nil)
	mockClient.BucketErrors["backups"] = nil
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil, "", "secret", "AKIA", "secret", "backups")

	require.NoError(t, RunSetup(context.Background(), setup, prompter))

	assert.Equal(t, []string{credentialsMessage}, prompter.Messages)
}

func TestSetupSessionErrorRejectsCredentials(t *testing.T) {
	failing := func(ctx context.Context, creds SessionCredentials) (BucketClient, error) {
		return nil, errors.New("no region")
	}
	setup := NewSetup(failing, "us-west-2")

	err := setup.SubmitCredentials(context.Background(), SessionCredentials{AccessKeyID: "a", SecretAccessKey: "b"})

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, AwaitingCredentials, setup.State)
}

func TestSetupCreatesMissingBucket(t *testing.T) {
	mockClient := NewMockClient(nil)
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil, "AKIA", "secret", "fresh-bucket")

	require.NoError(t, RunSetup(context.Background(), setup, prompter))

	assert.Equal(t, Ready, setup.State)
	assert.Equal(t, []MockRequest{{Bucket: "fresh-bucket", Region: "us-west-2"}}, mockClient.CreateRequests)
}

func TestSetupRepromptsForBadBuckets(t *testing.T) {
	mockClient := NewMockClient(nil)
	mockClient.BucketErrors["locked"] = ErrBucketForbidden
	mockClient.BucketErrors["ok-bucket"] = nil
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil, "AKIA", "secret", "MYBUCKET", "locked", "ok-bucket")

	require.NoError(t, RunSetup(context.Background(), setup, prompter))

	assert.Equal(t, "ok-bucket", setup.Bucket)
	assert.Equal(t, []string{
		"Error: Invalid Bucket name 'MYBUCKET'. Please try again!",
		"Error: The bucket 'locked' has forbidden access. Please try a different bucket!",
	}, prompter.Messages)
	assert.Empty(t, mockClient.CreateRequests, "a forbidden bucket must never be created")
	assert.Equal(t, []string{"locked", "ok-bucket"}, mockClient.HeadBucketReqs)
}

func TestSetupCreateConflictAsksForNewName(t *testing.T) {
	mockClient := NewMockClient(nil)
	mockClient.CreateErr = ErrBucketNameConflict
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil, "AKIA", "secret", "taken")

	err := RunSetup(context.Background(), setup, prompter)

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, Failed, setup.State)
	assert.Equal(t, "", setup.Bucket)
	assert.Equal(t, []string{
		"Error: The Bucket 'taken' is already taken. Please enter a different bucket name!",
	}, prompter.Messages)
	assert.Equal(t, "Please enter the bucket name you'd like to backup to: ", prompter.Prompts[len(prompter.Prompts)-1])
}

func TestSetupFailsWhenScriptRunsOut(t *testing.T) {
	setup := NewSetup(mockSession(NewMockClient(nil)), "us-west-2")

	err := RunSetup(context.Background(), setup, NewScriptedPrompter(nil))

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, Failed, setup.State)
}

func TestSetupRejectsOutOfOrderTransitions(t *testing.T) {
	setup := NewSetup(mockSession(NewMockClient(nil)), "us-west-2")

	assert.Error(t, setup.SubmitBucketName(context.Background(), "b"))
	assert.Error(t, setup.ResolveBucket(context.Background()))
	assert.Equal(t, AwaitingCredentials, setup.State)
}

func TestSetupPreloadSkipsPrompts(t *testing.T) {
	mockClient := NewMockClient(nil)
	mockClient.BucketErrors["backups"] = nil
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil)

	setup.Preload(context.Background(), SessionCredentials{AccessKeyID: "AKIA", SecretAccessKey: "s"}, "backups", prompter)
	err := RunSetup(context.Background(), setup, prompter)

	require.NoError(t, err)
	assert.Empty(t, prompter.Prompts)
}

func TestSetupPreloadReportsBadBucket(t *testing.T) {
	mockClient := NewMockClient(nil)
	mockClient.BucketErrors["good"] = nil
	setup := NewSetup(mockSession(mockClient), "us-west-2")
	prompter := NewScriptedPrompter(nil, "good")

	setup.Preload(context.Background(), SessionCredentials{AccessKeyID: "AKIA", SecretAccessKey: "s"}, "LOUD", prompter)
	require.NoError(t, RunSetup(context.Background(), setup, prompter))

	assert.Equal(t, "good", setup.Bucket)
	assert.Equal(t, []string{"Error: Invalid Bucket name 'LOUD'. Please try again!"}, prompter.Messages)
}

func TestSetupCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	setup := NewSetup(mockSession(NewMockClient(nil)), "us-west-2")

	err := RunSetup(ctx, setup, NewScriptedPrompter(nil, "a", "b"))

	assert.ErrorIs(t, err, context.Canceled)
}
