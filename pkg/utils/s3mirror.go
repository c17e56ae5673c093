package utils

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// S3Config describes an S3 compatible bucket archived files are mirrored to.
type S3Config struct {
	Endpoint string
	Region   string
	Bucket   string
	Key      string
	Secret   string
}

func NewS3Client(cfg S3Config) (s3iface.S3API, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.Key, cfg.Secret, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating s3 session")
	}
	return s3.New(sess), nil
}

// S3Mirror writes through to another FileManager and uploads every written
// file under its path relative to baseDir.
type S3Mirror struct {
	next    FileManager
	client  s3iface.S3API
	bucket  string
	baseDir string
	ctx     context.Context
}

func NewS3Mirror(ctx context.Context, next FileManager, client s3iface.S3API, bucket, baseDir string) *S3Mirror {
	return &S3Mirror{
		next:    next,
		client:  client,
		bucket:  bucket,
		baseDir: baseDir,
		ctx:     ctx,
	}
}

func (m *S3Mirror) MkdirAll(path string, perm os.FileMode) error {
	return m.next.MkdirAll(path, perm)
}

func (m *S3Mirror) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := m.next.WriteFile(filename, data, perm); err != nil {
		return err
	}

	key := m.objectKey(filename)
	_, err := m.client.PutObjectWithContext(m.ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrapf(err, "mirroring %s to s3://%s", key, m.bucket)
}

func (m *S3Mirror) objectKey(filename string) string {
	rel, err := filepath.Rel(m.baseDir, filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(filename)
	}
	return filepath.ToSlash(rel)
}
