package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueInsightsTracker/internal/config"
)

func TestLocal_SaveListRemove(t *testing.T) {
	dir := t.TempDir()
	st, err := New(config.StorageConfig{Provider: "local", UploadDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := st.Save(ctx, "screenshot.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(ref))
	assert.Equal(t, ".PNG", filepath.Ext(ref))

	b, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	ref2, err := st.Save(ctx, "screenshot.png", strings.NewReader("other"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, ref2)

	objs, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	require.NoError(t, st.Remove(ctx, ref))
	require.NoError(t, st.Remove(ctx, ref), "removing a missing file is not an error")
	objs, err = st.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, filepath.Base(ref2), objs[0].Name)
}

func TestLocal_ListReportsModTime(t *testing.T) {
	dir := t.TempDir()
	st, err := NewLocal(dir)
	require.NoError(t, err)
	old := time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	p := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(p, old, old))

	objs, err := st.List(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.True(t, objs[0].ModTime.Equal(old), "modtime %v want %v", objs[0].ModTime, old)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(config.StorageConfig{Provider: "ftp"})
	assert.Error(t, err)
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string]time.Time
	deleted []string
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.objects[aws.StringValue(in.Key)] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.StringValue(in.Key))
	delete(f.objects, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2PagesWithContext(_ aws.Context, _ *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	page := &s3.ListObjectsV2Output{}
	for k, ts := range f.objects {
		page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k), LastModified: aws.Time(ts), Size: aws.Int64(1)})
	}
	fn(page, true)
	return nil
}

func TestS3_SaveListRemove(t *testing.T) {
	api := &fakeS3{objects: map[string]time.Time{}}
	st := NewS3WithAPI(api, "attachments")
	ctx := context.Background()

	ref, err := st.Save(ctx, "log.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "s3://attachments/"))
	assert.True(t, strings.HasSuffix(ref, ".txt"))

	objs, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	require.NoError(t, st.Remove(ctx, ref))
	assert.Equal(t, []string{strings.TrimPrefix(ref, "s3://attachments/")}, api.deleted)
}
