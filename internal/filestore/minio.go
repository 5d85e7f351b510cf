package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	PublicURL string `json:"public_url"`
	UseSSL    bool   `json:"use_ssl"`
}

type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type minioStore struct {
	client    minioAPI
	bucket    string
	prefix    string
	publicURL string
}

func init() {
	Register("minio", createMinioStore)
}

func createMinioStore(args interface{}) (Store, error) {
	config := &minioConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Endpoint == "" || config.Bucket == "" || config.AccessKey == "" || config.SecretKey == "" {
		return nil, fmt.Errorf("minio endpoint/bucket/access_key/secret_key are required")
	}
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new client: %w", err)
	}
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", config.Bucket, err)
		}
	}
	publicURL := config.PublicURL
	if publicURL == "" {
		publicURL = client.EndpointURL().String() + "/" + config.Bucket
	}
	return &minioStore{
		client:    client,
		bucket:    config.Bucket,
		prefix:    strings.Trim(config.Prefix, "/"),
		publicURL: publicURL,
	}, nil
}

func (s *minioStore) Type() string {
	return "minio"
}

func (s *minioStore) objectKey(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix != "" {
		return path.Join(s.prefix, cleaned), nil
	}
	return cleaned, nil
}

func (s *minioStore) URL(key string) string {
	objectKey, err := s.objectKey(key)
	if err != nil {
		objectKey = strings.TrimPrefix(key, "/")
	}
	return strings.TrimSuffix(s.publicURL, "/") + "/" + objectKey
}

func (s *minioStore) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", err
	}
	if objectKey == "" {
		return "", fmt.Errorf("file key is required")
	}
	if size < 0 {
		size = -1
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey, r, size, minio.PutObjectOptions{
		ContentType: contentTypeOf(objectKey),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", objectKey, err)
	}
	cleaned, _ := CleanKey(key)
	return cleaned, nil
}

func (s *minioStore) Exists(ctx context.Context, key string) (bool, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isMinioNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object %q: %w", objectKey, err)
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func (s *minioStore) ListDir(ctx context.Context, dir string) ([]string, []string, error) {
	prefix, err := s.objectKey(dir)
	if err != nil {
		return nil, nil, err
	}
	if prefix != "" {
		prefix += "/"
	}
	dirs := make([]string, 0)
	files := make([]string, 0)
	// non-recursive listing reports sub directories as keys ending in "/"
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, nil, fmt.Errorf("list objects %q: %w", prefix, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" {
			continue
		}
		if strings.HasSuffix(name, "/") {
			dirs = append(dirs, strings.TrimSuffix(name, "/"))
			continue
		}
		files = append(files, name)
	}
	return dirs, files, nil
}

func (s *minioStore) EnsureDir(ctx context.Context, dir string) error {
	_ = ctx
	_ = dir
	return nil
}

func (s *minioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", objectKey, err)
	}
	return obj, nil
}

func (s *minioStore) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if objectKey == "" {
		return fmt.Errorf("file key is required")
	}
	err = s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil && !isMinioNotFound(err) {
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}
