// internal/common/storage/s3.go
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"masqanicore/internal/common/config"
	apperrors "masqanicore/internal/common/errors"
)

// Uploader stores listing photos in S3-compatible storage and returns the
// durable public URL for each object. Inline-encoded payloads exist only as
// transient client-side previews; the URL returned here is the only form a
// photo may take in persisted listing state.
type Uploader struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewUploader creates an Uploader from storage configuration.
func NewUploader(ctx context.Context, cfg config.StorageConfig) (*Uploader, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, apperrors.NewAuthRequiredError("storage credentials missing")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
	}, nil
}

// Upload stores raw bytes at the caller-chosen path and returns the public URL.
func (u *Uploader) Upload(ctx context.Context, path string, payload []byte, contentType string) (string, error) {
	if u == nil || u.client == nil {
		return "", apperrors.NewAuthRequiredError("storage requires an active session")
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", apperrors.NewUploadError(path, err)
	}

	return u.publicBaseURL + "/" + strings.TrimLeft(path, "/"), nil
}

// UploadDataURI decodes an inline data-URI preview and stores it. The
// returned URL replaces the inline entry in the draft.
func (u *Uploader) UploadDataURI(ctx context.Context, path, dataURI string) (string, error) {
	payload, contentType, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", apperrors.NewUploadError(path, err)
	}
	return u.Upload(ctx, path, payload, contentType)
}

// IsRemoteURL reports whether the photo entry is an http(s) URL, the only
// form allowed in persisted listing state.
func IsRemoteURL(entry string) bool {
	return strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://")
}

// IsInlinePayload reports whether the photo entry is an inline data encoding.
func IsInlinePayload(entry string) bool {
	return strings.HasPrefix(entry, "data:")
}

// DecodeDataURI splits a data URI into its payload and content type. Bare
// base64 strings without the data: prefix are accepted with a default type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	contentType := "image/jpeg"
	raw := uri

	if strings.HasPrefix(uri, "data:") {
		idx := strings.Index(uri, ",")
		if idx < 0 {
			return nil, "", fmt.Errorf("malformed data uri")
		}
		meta := uri[len("data:"):idx]
		raw = uri[idx+1:]
		if semi := strings.Index(meta, ";"); semi >= 0 {
			meta = meta[:semi]
		}
		if meta != "" {
			contentType = meta
		}
	}

	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 payload: %w", err)
	}
	return payload, contentType, nil
}
