package diag

import (
	"bytes"
	"context"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// Archiver pushes diagnostic snapshots to an S3 bucket. Entirely optional:
// a nil Archiver (or one built with an empty bucket) is never wired up by
// the caller.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewArchiver loads the default AWS credential chain and region resolution
// (environment, shared config, EC2/ECS role) and returns an Archiver
// targeting bucket/prefix.
func NewArchiver(ctx context.Context, bucket, prefix string) (*Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{}

	// A deployment-local override: explicit static keys, bypassing the
	// default provider chain, for environments without an instance role.
	if ak, sk := os.Getenv("DESKSTREAM_S3_ACCESS_KEY"), os.Getenv("DESKSTREAM_S3_SECRET_KEY"); ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, os.Getenv("DESKSTREAM_S3_SESSION_TOKEN")),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "diag: loading aws config")
	}
	return &Archiver{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// Upload puts data under prefix/name in the archiver's bucket.
func (a *Archiver) Upload(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := path.Join(a.prefix, name)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return errors.Wrapf(err, "diag: uploading %s to s3://%s", key, a.bucket)
	}
	return nil
}
