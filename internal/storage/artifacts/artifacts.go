package artifacts

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/BearBump/CrewTrack/config"
)

// Storage keeps sign-off signature images in an S3-compatible bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init minio")
	}
	return &Storage{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrapf(err, "check bucket %s", s.bucket)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return errors.Wrapf(err, "make bucket %s", s.bucket)
	}
	return nil
}

func (s *Storage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "put signature object")
}

// Delete removes an object; a missing object is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrap(err, "remove signature object")
}

// PresignURL returns a signed GET URL for an admin to view the signature.
func (s *Storage) PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", errors.Wrap(err, "presign signature object")
	}
	return u.String(), nil
}

// DecodeSignature accepts a data URL ("data:image/png;base64,...") or bare
// base64 and returns the image bytes with their content type.
func DecodeSignature(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", errors.New("empty signature")
	}

	contentType := "image/png"
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		meta, data, ok := strings.Cut(raw[len("data:"):], ",")
		if !ok {
			return nil, "", errors.New("malformed data url")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", errors.New("data url is not base64")
		}
		if ct := strings.TrimSuffix(meta, ";base64"); ct != "" {
			contentType = ct
		}
		payload = data
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", errors.Errorf("unsupported signature type %q", contentType)
	}

	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "decode signature")
	}
	if len(b) == 0 {
		return nil, "", errors.New("empty signature")
	}
	return b, contentType, nil
}

// ExtensionFor maps an image content type to an object key suffix.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/svg+xml":
		return ".svg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
