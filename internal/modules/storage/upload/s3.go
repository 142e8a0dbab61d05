// Package upload stores user supplied assets (avatar images, product shots)
// in object storage and hands back the public URL the workflows fetch them
// from.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appcfg "github.com/contentflow/core/internal/config"
)

// Uploader stores bytes under key and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

var ErrNotConfigured = errors.New("object storage is not configured")

type S3Uploader struct {
	client       *s3.Client
	bucket       string
	endpoint     *url.URL
	customDomain string
	prefix       string
	pathStyle    bool
}

func NewS3Uploader(opts appcfg.S3Config) (*S3Uploader, error) {
	if !opts.Enabled() {
		return nil, ErrNotConfigured
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	endpoint, err := resolveEndpoint(opts.Endpoint, region)
	if err != nil {
		return nil, err
	}
	// custom endpoints (MinIO, R2) generally only serve path style
	pathStyle := opts.PathStyle || strings.TrimSpace(opts.Endpoint) != ""

	s3opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		UsePathStyle: pathStyle,
	}
	if strings.TrimSpace(opts.Endpoint) != "" {
		s3opts.BaseEndpoint = aws.String(endpoint.String())
	}

	return &S3Uploader{
		client:       s3.New(s3opts),
		bucket:       strings.TrimSpace(opts.Bucket),
		endpoint:     endpoint,
		customDomain: strings.TrimRight(strings.TrimSpace(opts.CustomDomain), "/"),
		prefix:       normalizeObjectKey(opts.Prefix),
		pathStyle:    pathStyle,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = u.objectKey(key)
	if key == "" {
		return "", fmt.Errorf("invalid object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.PublicURL(key), nil
}

func (u *S3Uploader) objectKey(key string) string {
	key = normalizeObjectKey(key)
	if key == "" {
		return ""
	}
	if u.prefix != "" {
		return u.prefix + "/" + key
	}
	return key
}

// PublicURL returns where an object under key is reachable. key must already
// carry the prefix.
func (u *S3Uploader) PublicURL(key string) string {
	encoded := encodeObjectKey(key)
	if u.customDomain != "" {
		return u.customDomain + "/" + encoded
	}
	base := strings.TrimSuffix(u.endpoint.Path, "/")
	if u.pathStyle {
		return u.endpoint.Scheme + "://" + u.endpoint.Host + base + "/" + u.bucket + "/" + encoded
	}
	host := u.endpoint.Host
	if !strings.HasPrefix(strings.ToLower(host), strings.ToLower(u.bucket)+".") {
		host = u.bucket + "." + host
	}
	return u.endpoint.Scheme + "://" + host + base + "/" + encoded
}

func resolveEndpoint(raw, region string) (*url.URL, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(strings.TrimSuffix(endpoint, "/"))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid s3 endpoint: %s", raw)
	}
	return parsed, nil
}

func normalizeObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return strings.Trim(key, "/")
}

func encodeObjectKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
