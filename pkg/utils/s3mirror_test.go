package utils

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API

	objects map[string][]byte
	err     error
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3MirrorUploadsRelativeKey(t *testing.T) {
	base := t.TempDir()
	fake := &fakeS3{objects: map[string][]byte{}}
	mirror := NewS3Mirror(context.Background(), OSFileManager{}, fake, "archive", base)

	dir := filepath.Join(base, "inbox")
	require.NoError(t, mirror.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "Hello_7.txt")
	require.NoError(t, mirror.WriteFile(path, []byte("hello"), 0o644))

	local, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(local))
	assert.Equal(t, []byte("hello"), fake.objects["archive/inbox/Hello_7.txt"])
}

func TestS3MirrorReportsUploadFailure(t *testing.T) {
	base := t.TempDir()
	fake := &fakeS3{objects: map[string][]byte{}, err: errors.New("access denied")}
	mirror := NewS3Mirror(context.Background(), OSFileManager{}, fake, "archive", base)

	err := mirror.WriteFile(filepath.Join(base, "report.pdf"), []byte("%PDF"), 0o644)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Contains(t, err.Error(), "report.pdf")
}

func TestS3MirrorKeyOutsideBase(t *testing.T) {
	mirror := NewS3Mirror(context.Background(), OSFileManager{}, &fakeS3{}, "archive", "/data/mail")
	assert.Equal(t, "x.txt", mirror.objectKey("/elsewhere/x.txt"))
	assert.Equal(t, "attachments/a.bin", mirror.objectKey("/data/mail/attachments/a.bin"))
}
