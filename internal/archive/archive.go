// Package archive exports finalized plan snapshots to object storage.
// The archive is best effort: a write failure is logged and never blocks
// or fails the conversation turn.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shreyansh232/planfirst/internal/tripstore"
	"github.com/shreyansh232/planfirst/internal/util/jsonutil"
)

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SnapshotArchive writes one JSON object per finalized planning or
// refinement version under trips/<trip-id>/v<N>.json.
type SnapshotArchive struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func New(cfg Config) (*SnapshotArchive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("archive access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init archive client: %w", err)
	}
	return &SnapshotArchive{client: client, bucketName: bucket, region: region}, nil
}

func (a *SnapshotArchive) ensureBucket(ctx context.Context) error {
	if a == nil || a.client == nil {
		return fmt.Errorf("archive is nil")
	}
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucketName)
		if err != nil {
			a.initErr = err
			return
		}
		if exists {
			return
		}
		a.initErr = a.client.MakeBucket(ctx, a.bucketName, minio.MakeBucketOptions{Region: a.region})
	})
	return a.initErr
}

// Snapshot stores the finalized version. Safe to call on a nil archive so
// callers can keep the hook unconditional.
func (a *SnapshotArchive) Snapshot(ctx context.Context, v tripstore.TripVersion) {
	if a == nil {
		return
	}
	if err := a.put(ctx, v); err != nil {
		log.Printf("archive: snapshot %s v%d: %v", v.TripID, v.VersionNumber, err)
	}
}

func (a *SnapshotArchive) put(ctx context.Context, v tripstore.TripVersion) error {
	if err := a.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	content, err := jsonutil.MarshalNoEscapeIndent(v, "", "  ")
	if err != nil {
		return err
	}
	key := fmt.Sprintf("trips/%s/v%d.json", v.TripID, v.VersionNumber)
	_, err = a.client.PutObject(ctx, a.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
