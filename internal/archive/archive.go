// Package archive exports the event log as compressed binary segments
// to S3-compatible object storage. A segment is the full log at the
// time of the snapshot; it can seed cold-start replays or feed offline
// analysis without touching the live database.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"chirper/internal/config"
	"chirper/internal/eventlog"
	"chirper/internal/logger"
)

// ObjectPutter is the slice of the S3 API the archiver needs; tests
// substitute an in-memory fake.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver snapshots the full log into one gzipped segment object.
type Archiver struct {
	log    eventlog.Log
	putter ObjectPutter
	bucket string
}

func New(log eventlog.Log, putter ObjectPutter, bucket string) *Archiver {
	return &Archiver{log: log, putter: putter, bucket: bucket}
}

// PublicURL joins a bucket's public base URL (an r2.dev domain or a
// custom domain bound to the bucket) with an object key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// NewR2Client constructs an S3-compatible client for Cloudflare R2.
func NewR2Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return client, nil
}

// Snapshot reads the whole log, encodes it as framed binary records,
// gzips the result, and uploads segments/<unix-ts>-<count>.chirplog.gz.
// It returns the object key and the number of archived events.
func (a *Archiver) Snapshot(ctx context.Context) (string, int, error) {
	events, err := a.log.ReadAll(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("archive: read log: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, e := range events {
		if err := eventlog.WriteRecord(gz, e); err != nil {
			return "", 0, fmt.Errorf("archive: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", 0, fmt.Errorf("archive: close gzip: %w", err)
	}

	key := fmt.Sprintf("segments/%d-%d.chirplog.gz", time.Now().Unix(), len(events))
	_, err = a.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return "", 0, fmt.Errorf("archive: upload segment: %w", err)
	}

	logger.Log.Info("log segment archived",
		zap.String("key", key),
		zap.Int("events", len(events)),
		zap.Int("compressed_bytes", buf.Len()))
	return key, len(events), nil
}
