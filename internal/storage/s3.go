package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	pkgerrors "github.com/pkg/errors"

	"issueInsightsTracker/internal/config"
)

// S3 stores attachments as objects at the root of a bucket.
type S3 struct {
	api    s3iface.S3API
	bucket string
}

// NewS3 builds a client from cfg. Static credentials are used when given,
// otherwise the SDK's default chain applies.
func NewS3(cfg config.StorageConfig) (*S3, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.Endpoint != ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "aws session")
	}
	return NewS3WithAPI(s3.New(sess), cfg.Bucket), nil
}

// NewS3WithAPI wraps an existing S3 client.
func NewS3WithAPI(api s3iface.S3API, bucket string) *S3 {
	return &S3{api: api, bucket: bucket}
}

func (s *S3) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return "", pkgerrors.Wrap(err, "read attachment")
	}
	key := uniqueName(originalName)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := s.api.PutObjectWithContext(ctx, input); err != nil {
		return "", pkgerrors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func (s *S3) Remove(ctx context.Context, ref string) error {
	_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil
	}
	return err
}

func (s *S3) List(ctx context.Context) ([]Object, error) {
	var out []Object
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	err := s.api.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			out = append(out, Object{
				Name:    aws.StringValue(item.Key),
				Size:    aws.Int64Value(item.Size),
				ModTime: aws.TimeValue(item.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "list s3://%s", s.bucket)
	}
	return out, nil
}

// key turns "s3://bucket/name" back into "name"; bare names pass through.
func (s *S3) key(ref string) string {
	return strings.TrimPrefix(ref, "s3://"+s.bucket+"/")
}
