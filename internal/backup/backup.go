// Package backup uploads encrypted SQLite snapshots to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/zooz/internal/config"
)

const keyPrefix = "snapshots/"

// s3Client is the subset of *s3.Client used here.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Snapshot describes one uploaded object.
type Snapshot struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshotter copies the live database with VACUUM INTO, seals it and
// uploads it. Only one snapshot runs at a time.
type Snapshotter struct {
	mu         sync.Mutex
	db         *sql.DB
	client     s3Client
	bucket     string
	passphrase string
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Snapshotter, or nil when no bucket is configured.
func New(db *sql.DB, cfg config.S3Config, passphrase string, logger *slog.Logger) *Snapshotter {
	if !cfg.Enabled() {
		return nil
	}
	return newSnapshotter(db, newS3Client(cfg), cfg.Bucket, passphrase, logger)
}

func newSnapshotter(db *sql.DB, client s3Client, bucket, passphrase string, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		db:         db,
		client:     client,
		bucket:     bucket,
		passphrase: passphrase,
		logger:     logger.With("component", "backup"),
		now:        time.Now,
	}
}

func newS3Client(cfg config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Run takes a snapshot now.
func (s *Snapshotter) Run(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpDir, err := os.MkdirTemp("", "zooz-snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	copyPath := filepath.Join(tmpDir, "zooz.db")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", copyPath); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	plain, err := os.ReadFile(copyPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := seal(plain, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	at := s.now().UTC()
	key := keyPrefix + at.Format("2006-01-02T150405Z") + ".db.enc"
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return nil, fmt.Errorf("upload to s3: %w", err)
	}

	s.logger.Info("snapshot uploaded", "key", key, "bytes", len(sealed))
	return &Snapshot{Key: key, Size: int64(len(sealed)), CreatedAt: at}, nil
}

// List returns uploaded snapshots, newest first.
func (s *Snapshotter) List(ctx context.Context) ([]Snapshot, error) {
	var out []Snapshot
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(keyPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			snap := Snapshot{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				snap.CreatedAt = obj.LastModified.UTC()
			}
			out = append(out, snap)
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}
	// Keys embed the timestamp, so lexical order is chronological.
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Fetch downloads and decrypts a snapshot into dstPath after an integrity
// check. It never touches the live database.
func (s *Snapshotter) Fetch(ctx context.Context, key, dstPath string) error {
	if !strings.HasPrefix(key, keyPrefix) {
		key = keyPrefix + key
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	plain, err := open(sealed, s.passphrase)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dstPath, plain, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := checkIntegrity(ctx, dstPath); err != nil {
		os.Remove(dstPath)
		return err
	}
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Schedule runs a snapshot every interval until ctx is done.
func (s *Snapshotter) Schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled snapshot", "error", err)
			}
		}
	}
}
