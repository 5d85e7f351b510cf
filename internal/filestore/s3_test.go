package filestore

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	puts    []string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, aws.ToString(in.Key))
	f.objects[aws.ToString(in.Key)] = ""
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; ok {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, &types.NotFound{}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, &types.NoSuchKey{}
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			p := prefix + rest[:idx+1]
			if !seen[p] {
				seen[p] = true
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
			}
			continue
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_WithPrefix(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"site/uploads/a.png":         "",
		"site/uploads/2024/03/b.png": "",
	}}
	store := &s3Store{client: fake, bucket: "bkt", prefix: "site", endpoint: "s3.example.com", useSSL: true}
	ctx := context.Background()

	ok, err := store.Exists(ctx, "uploads/a.png")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Exists(ctx, "uploads/c.png")
	require.NoError(t, err)
	require.False(t, ok)

	dirs, files, err := store.ListDir(ctx, "uploads")
	require.NoError(t, err)
	require.Equal(t, []string{"2024"}, dirs)
	require.Equal(t, []string{"a.png"}, files)

	key, err := store.Save(ctx, "uploads/d.png", strings.NewReader("img"), 3)
	require.NoError(t, err)
	require.Equal(t, "uploads/d.png", key)
	require.Equal(t, []string{"site/uploads/d.png"}, fake.puts)

	require.Equal(t, "https://s3.example.com/bkt/site/uploads/d.png", store.URL("uploads/d.png"))
	require.NoError(t, store.Delete(ctx, "uploads/d.png"))
	require.NotContains(t, fake.objects, "site/uploads/d.png")
	require.NoError(t, store.Delete(ctx, "uploads/d.png"))
	_, err = store.Open(ctx, "uploads/none.png")
	require.Error(t, err)
}

func TestIsS3NotFound(t *testing.T) {
	require.True(t, isS3NotFound(&types.NotFound{}))
	require.True(t, isS3NotFound(&types.NoSuchKey{}))
	require.False(t, isS3NotFound(context.Canceled))
}
