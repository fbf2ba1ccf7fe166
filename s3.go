package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// usEast1 rejects an explicit location constraint on CreateBucket.
const usEast1 = "us-east-1"

type S3Client struct {
	Client   *s3.Client
	uploader *manager.Uploader
}

func NewS3Client(client *s3.Client) *S3Client {
	return &S3Client{
		Client:   client,
		uploader: manager.NewUploader(client),
	}
}

func loadAWSConfig(ctx context.Context, region string, creds SessionCredentials) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		),
		config.WithRegion(region))
}

// NewS3Session returns a SessionFactory producing S3 clients for appConfig's
// region and optional S3-compatible endpoint. Constructing the client does not
// contact the service.
func NewS3Session(appConfig AppConfig) SessionFactory {
	return func(ctx context.Context, creds SessionCredentials) (BucketClient, error) {
		cfg, err := loadAWSConfig(ctx, appConfig.Region, creds)
		if err != nil {
			return nil, fmt.Errorf("Error creating s3 client: %w", err)
		}
		awsS3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if appConfig.Endpoint != "" {
				o.BaseEndpoint = aws.String(appConfig.Endpoint)
				o.UsePathStyle = true
			}
		})
		return NewS3Client(awsS3Client), nil
	}
}

func (s *S3Client) HeadBucket(ctx context.Context, bucket string) error {
	_, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	return classifyError(err, ErrBucketNotFound)
}

func (s *S3Client) CreateBucket(ctx context.Context, bucket, region string) error {
	createReq := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	if region != "" && region != usEast1 {
		createReq.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	_, err := s.Client.CreateBucket(ctx, createReq)

	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return nil
	}
	return classifyError(err, ErrBucketNotFound)
}

func (s *S3Client) HeadObject(ctx context.Context, bucket, key string) RemoteLookup {
	out, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		err = classifyError(err, ErrObjectNotFound)
		if errors.Is(err, ErrObjectNotFound) {
			return NotFound()
		}
		return LookupError(err)
	}

	return Found(ObjectInfo{
		LastModified: aws.ToTime(out.LastModified),
		Size:         aws.ToInt64(out.ContentLength),
	})
}

func (s *S3Client) PutObject(ctx context.Context, bucket, key string, body io.Reader) error {
	_, putErr := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	})

	return classifyError(putErr, ErrObjectNotFound)
}

// classifyError maps an SDK error onto the sentinel taxonomy while keeping the
// original error in the chain. notFound is the sentinel used for 404s, since
// bucket and object probes mean different things by it.
func classifyError(err error, notFound error) error {
	if err == nil {
		return nil
	}

	// generated validators return the value type, hand-built ones the pointer
	var paramErr smithy.InvalidParamsError
	var paramErrPtr *smithy.InvalidParamsError
	if errors.As(err, &paramErr) || errors.As(err, &paramErrPtr) {
		return fmt.Errorf("%w: %w", ErrInvalidBucketName, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "AllAccessDisabled":
			return fmt.Errorf("%w: %w", ErrBucketForbidden, err)
		case "NotFound", "NoSuchBucket", "NoSuchKey":
			return fmt.Errorf("%w: %w", notFound, err)
		case "InvalidBucketName":
			return fmt.Errorf("%w: %w", ErrInvalidBucketName, err)
		case "BucketAlreadyExists":
			return fmt.Errorf("%w: %w", ErrBucketNameConflict, err)
		}
	}

	// HEAD responses carry no body, so only the status code is available.
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrBucketForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", notFound, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %w", ErrInvalidBucketName, err)
		case http.StatusConflict:
			return fmt.Errorf("%w: %w", ErrBucketNameConflict, err)
		}
	}

	return err
}

var _ BucketClient = (*S3Client)(nil)
