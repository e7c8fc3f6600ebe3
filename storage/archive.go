package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxArchiveBytes int64 = 20 * 1024 * 1024

// DocumentArchive keeps the raw extracted text of ingested documents in
// MinIO/S3 so the relational store only carries what search needs.
type DocumentArchive struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewDocumentArchiveFromEnv initialises DocumentArchive using MINIO_*
// environment variables. Missing variables disable archival: both return
// values are nil.
func NewDocumentArchiveFromEnv() (*DocumentArchive, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &DocumentArchive{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// ArchiveText stores the document's extracted text beneath
// documents/<project>/<document>/ and returns the public URL.
func (a *DocumentArchive) ArchiveText(ctx context.Context, projectID, documentID uint64, fileName, content string) (string, error) {
	if a == nil || a.client == nil {
		return "", errors.New("document archive not configured")
	}
	data := []byte(content)
	if int64(len(data)) > maxArchiveBytes {
		return "", fmt.Errorf("document size exceeds %d bytes", maxArchiveBytes)
	}

	objectName := path.Join(
		"documents",
		fmt.Sprintf("%d", projectID),
		fmt.Sprintf("%d", documentID),
		fmt.Sprintf("%s-%s.txt", uuid.NewString(), sanitizeFileName(fileName)),
	)

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := a.client.PutObject(uploadCtx, a.bucket, objectName, strings.NewReader(content), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("archive document: %w", err)
	}

	return a.buildPublicURL(objectName), nil
}

// Remove deletes the object pointed to by the provided URL/object path.
func (a *DocumentArchive) Remove(ctx context.Context, archiveURL string) error {
	if a == nil || a.client == nil {
		return nil
	}
	objectName, ok := a.objectNameFromURL(archiveURL)
	if !ok {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return a.client.RemoveObject(removeCtx, a.bucket, objectName, minio.RemoveObjectOptions{})
}

// PresignedURL returns a temporary URL for downloading an archived
// document.
func (a *DocumentArchive) PresignedURL(ctx context.Context, raw string, expiry time.Duration) (string, error) {
	if a == nil || a.client == nil {
		return strings.TrimSpace(raw), nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	objectName, ok := a.objectNameFromURL(trimmed)
	if !ok {
		if !strings.Contains(trimmed, "://") {
			objectName = strings.TrimPrefix(trimmed, "/")
			objectName = strings.TrimPrefix(objectName, a.bucket+"/")
		}
	}
	if objectName == "" {
		return trimmed, nil
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	signed, err := a.client.PresignedGetObject(presignCtx, a.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}

	return signed.String(), nil
}

func (a *DocumentArchive) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(a.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, a.bucket, object)
}

func (a *DocumentArchive) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	base := strings.TrimSuffix(a.publicURL, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		candidate := strings.TrimPrefix(trimmed, base)
		candidate = strings.TrimPrefix(candidate, "/")
		candidate = strings.TrimPrefix(candidate, a.bucket+"/")
		candidate = strings.TrimPrefix(candidate, "/")
		if candidate != "" {
			return candidate, true
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err == nil && baseURL.Host != "" && baseURL.Host == target.Host {
		candidate := strings.TrimPrefix(target.Path, "/")
		candidate = strings.TrimPrefix(candidate, a.bucket+"/")
		candidate = strings.TrimPrefix(candidate, "/")
		if candidate != "" {
			return candidate, true
		}
	}

	return "", false
}

// sanitizeFileName keeps object keys URL-safe without losing the original
// name entirely.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "document"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
