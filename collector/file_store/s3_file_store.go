package file_store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

const (
	DefaultAwsRegion = "us-west-1"
)

type S3FileStore struct {
	bucket                string
	region                string
	uploader              *s3manager.Uploader
	customizeFileNameFunc CustomizeFileNameFuncType
}

func NewS3FileStore(bucket string, region string) (*S3FileStore, error) {
	if region == "" {
		region = DefaultAwsRegion
	}
	// AWS client session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "fail to create aws session")
	}

	return &S3FileStore{
		bucket:                bucket,
		region:                region,
		uploader:              s3manager.NewUploader(sess),
		customizeFileNameFunc: RawPayloadFileName,
	}, nil
}

func (s *S3FileStore) SetCustomizeFileNameFunc(f CustomizeFileNameFuncType) {
	s.customizeFileNameFunc = f
}

func (s *S3FileStore) Store(ctx context.Context, name string, body []byte) (string, error) {
	key := s.customizeFileNameFunc(name)
	if len(key) == 0 {
		return "", errors.New("generate empty s3 key, invalid")
	}
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "fail to upload %s to s3 bucket %s", key, s.bucket)
	}
	return key, nil
}

func (s *S3FileStore) GetUrlFromKey(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3FileStore) CleanUp() {
	// do nothing for s3
}
