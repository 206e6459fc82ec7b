package blobstore

import (
	"chupload/pkg/utils"
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// Archiver copies a finished local file to long term storage and returns
// where it went.
type Archiver interface {
	Archive(ctx context.Context, localPath, key string) (string, error)
}

// ObjectUploader is the part of manager.Uploader the archiver needs.
type ObjectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Params struct {
	Bucket          string
	Region          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

const s3PartSize = 10 * 1024 * 1024

type S3Archiver struct {
	uploader ObjectUploader
	bucket   string
	prefix   string
}

func NewS3Archiver(ctx context.Context, params S3Params) (*S3Archiver, error) {
	if params.Bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}

	opts := []func(*config.LoadOptions) error{}

	if params.Region != "" {
		opts = append(opts, config.WithRegion(params.Region))
	}

	if params.AccessKeyID != "" && params.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(params.AccessKeyID, params.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = s3PartSize
	})

	return NewS3ArchiverWith(uploader, params.Bucket, params.Prefix), nil
}

func NewS3ArchiverWith(uploader ObjectUploader, bucket, prefix string) *S3Archiver {
	return &S3Archiver{uploader: uploader, bucket: bucket, prefix: prefix}
}

func (sa *S3Archiver) ObjectKey(key string) string {
	if sa.prefix == "" {
		return key
	}

	return path.Join(sa.prefix, key)
}

func (sa *S3Archiver) Archive(ctx context.Context, localPath, key string) (string, error) {
	defer utils.Bench2("archive " + key)()

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open archive source: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat archive source: %w", err)
	}

	objectKey := sa.ObjectKey(key)

	out, err := sa.uploader.Upload(ctx, &s3.PutObjectInput{
		Body:              file,
		Bucket:            aws.String(sa.bucket),
		Key:               aws.String(objectKey),
		ContentLength:     aws.Int64(info.Size()),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	log.Info().
		Str("bucket", sa.bucket).
		Str("key", objectKey).
		Str("size", utils.HumanSize(info.Size())).
		Msg("archived upload")

	if out != nil && out.Location != "" {
		return out.Location, nil
	}

	return fmt.Sprintf("s3://%s/%s", sa.bucket, objectKey), nil
}
