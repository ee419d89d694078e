package storage

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/logging"
	"github.com/illustory/gallery/src/oops"
)

type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ ObjectStore = &S3{}

func NewS3(ctx context.Context, cfg config.BackendConfig) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AnonKey, cfg.ServiceKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, oops.New(err, "failed to load object store config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Url != "" {
			o.BaseEndpoint = aws.String(cfg.Url)
		}
		o.UsePathStyle = true
		// S3-compatible backends don't all understand the newer checksum trailers.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

func (s *S3) SignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", oops.New(err, "failed to sign url for %s", key)
	}
	return req.URL, nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, oops.New(err, "failed to check for object %s", key)
	}
	return true, nil
}

func (s *S3) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if len(content) == 0 {
		return ErrEmptyObject
	}

	upload := func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &key,
			Body:        bytes.NewReader(content),
			ContentType: &contentType,
		})
		return err
	}

	err := upload()
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "NoSuchBucket" {
			logging.ExtractLogger(ctx).Info().Str("bucket", s.bucket).Msg("Creating missing bucket")
			_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
				Bucket: &s.bucket,
			})
			if err != nil {
				return oops.New(err, "failed to create bucket %s", s.bucket)
			}

			err = upload()
			if err != nil {
				return oops.New(err, "failed to upload %s", key)
			}
		} else {
			return oops.New(err, "failed to upload %s", key)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respError interface{ HTTPStatusCode() int }
	if errors.As(err, &respError) && respError.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
