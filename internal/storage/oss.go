package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

type OSSConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// OSSStore puts media into an Aliyun OSS bucket.
type OSSStore struct {
	bucket     *oss.Bucket
	endpoint   string
	bucketName string
	publicBase string
}

func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket: %w", err)
	}
	if loc, err := client.GetBucketLocation(cfg.Bucket); err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 403 {
			log.Printf("[storage] skipping location check for bucket %s: access denied", cfg.Bucket)
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		log.Printf("[storage] oss bucket %s in %s", cfg.Bucket, loc)
	}
	return &OSSStore{
		bucket:     bucket,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *OSSStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	err := s.bucket.PutObject(key, body,
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
	)
	if err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *OSSStore) Delete(ctx context.Context, key string) error {
	return s.bucket.DeleteObject(key, oss.WithContext(ctx))
}

func (s *OSSStore) URL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	host := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, host, key)
}
