package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNS rejects subjects longer than this.
const maxSubjectLength = 100

func NewSNSNotifier(ctx context.Context, appConfig AppConfig, creds SessionCredentials) (Notifier, error) {
	var notifier Notifier

	cfg, cfgErr := loadAWSConfig(ctx, appConfig.Region, creds)
	if cfgErr != nil {
		return notifier, cfgErr
	}
	snsClient := &SNSClient{sns.NewFromConfig(cfg)}
	notifier = &SNSNotifier{Client: snsClient, Topic: appConfig.SNSTopic}

	return notifier, nil
}

type SNSClientIface interface {
	PublishMessage(ctx context.Context, msg *sns.PublishInput) error
}

type SNSClient struct {
	Client *sns.Client
}

func (s *SNSClient) PublishMessage(ctx context.Context, msg *sns.PublishInput) error {
	_, publishErr := s.Client.Publish(ctx, msg)
	return publishErr
}

type SNSNotifier struct {
	Client SNSClientIface
	Topic  string
}

// NotifySyncResults publishes the failed keys of a run, plus the error that
// ended it early if any. Clean runs send nothing.
func (s *SNSNotifier) NotifySyncResults(ctx context.Context, opts SyncOptions, results *ResultMap, runErr error) error {
	failures := results.Failures()

	// if no errors we dont need to send any notification
	if len(failures) == 0 && runErr == nil {
		return nil
	}

	// TODO: SNS caps messages at 256KB, a run with thousands of failures needs truncating
	var body strings.Builder
	if runErr != nil {
		fmt.Fprintf(&body, "Sync aborted: %s\n\n", runErr)
	}
	fmt.Fprintf(&body, "Summary: %s\n\n", results.Summary())
	for _, failure := range failures {
		fmt.Fprintf(&body,
			"Action: %s\nKey: %s\nError: %s\n\n",
			failure.Action,
			failure.Key,
			failure.Error,
		)
	}

	subject := fmt.Sprintf("Sync Errors: %s -> %s", opts.SourceFolder, opts.Bucket)
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength]
	}

	snsPublishReq := &sns.PublishInput{
		Message:  aws.String(body.String()),
		TopicArn: aws.String(s.Topic),
		Subject:  aws.String(subject),
	}
	return s.Client.PublishMessage(ctx, snsPublishReq)
}
