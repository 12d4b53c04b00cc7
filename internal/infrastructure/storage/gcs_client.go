package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"pasarmarket/internal/domain/entity"
)

// CloudStorageClient archives reconciliation reports as JSON objects in a
// private bucket. It implements service.AuditArchive.
type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName string, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (c *CloudStorageClient) ArchiveReconcileReport(ctx context.Context, report *entity.ReconcileReport) error {
	body, err := encodeReport(report)
	if err != nil {
		return err
	}

	obj := c.client.Bucket(c.bucketName).Object(reportObjectName(report))
	wc := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	wc.ContentType = "application/json"
	wc.Metadata = map[string]string{
		"account_id": report.AccountID,
		"consistent": fmt.Sprintf("%t", report.Consistent),
	}

	if _, err := wc.Write(body); err != nil {
		wc.Close()
		return fmt.Errorf("failed to write report to GCS: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}

// reportObjectName lays reports out per account and day so operators can
// list one account's history with a prefix query.
func reportObjectName(report *entity.ReconcileReport) string {
	checked := report.CheckedAt.UTC()
	return fmt.Sprintf("reconcile/%s/%s/%s-%s.json",
		report.AccountID,
		checked.Format("2006-01-02"),
		checked.Format("150405"),
		uuid.New().String()[:8],
	)
}

func encodeReport(report *entity.ReconcileReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("nil reconcile report")
	}
	if report.CheckedAt.IsZero() {
		report.CheckedAt = time.Now().UTC()
	}
	return json.MarshalIndent(report, "", "  ")
}
