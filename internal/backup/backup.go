// Package backup takes encrypted snapshots of the ledger database and
// optionally ships them to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
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
)

const (
	filePrefix = "wadake-"
	fileSuffix = ".db.enc"
	timeLayout = "20060102T150405.000Z"
)

var ErrNoPassphrase = errors.New("backup passphrase not configured")

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. Retention is the number of
// snapshots kept, newest first.
type Config struct {
	Dir        string
	Passphrase string
	Retention  int
	S3         S3Config
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"lastBackup,omitempty"`
	LastFile   string     `json:"lastFile,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Result describes one completed snapshot.
type Result struct {
	Path string
	Key  string
	Size int64
}

// Manager snapshots the database with VACUUM INTO, encrypts the copy and
// keeps the newest Retention snapshots locally and in the bucket.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	status Status
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager. It is disabled when no passphrase is set.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = 7
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
		status: Status{State: StateDisabled},
	}
	if cfg.Passphrase != "" {
		m.status.State = StateIdle
	}
	if cfg.S3.Bucket != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start runs a snapshot every interval until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	if m.status.State == StateDisabled || interval <= 0 {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Run(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.status.State = StateError
	m.status.Error = err.Error()
	m.mu.Unlock()
	return err
}

// Run takes one snapshot now.
func (m *Manager) Run(ctx context.Context) (Result, error) {
	if m.cfg.Passphrase == "" {
		return Result{}, ErrNoPassphrase
	}

	m.mu.Lock()
	if m.status.State == StateRunning {
		m.mu.Unlock()
		return Result{}, errors.New("backup already running")
	}
	m.status.State = StateRunning
	m.status.Error = ""
	m.mu.Unlock()

	if err := os.MkdirAll(m.cfg.Dir, 0700); err != nil {
		return Result{}, m.fail(fmt.Errorf("create backup dir: %w", err))
	}

	started := m.now().UTC()
	name := filePrefix + started.Format(timeLayout) + fileSuffix
	raw := filepath.Join(m.cfg.Dir, "."+strings.TrimSuffix(name, ".enc")+".tmp")
	defer os.Remove(raw)

	plaintext, err := m.snapshot(ctx, raw)
	if err != nil {
		return Result{}, m.fail(err)
	}
	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return Result{}, m.fail(fmt.Errorf("encrypt snapshot: %w", err))
	}

	path := filepath.Join(m.cfg.Dir, name)
	if err := os.WriteFile(path, encrypted, 0600); err != nil {
		return Result{}, m.fail(fmt.Errorf("write snapshot: %w", err))
	}
	res := Result{Path: path, Size: int64(len(encrypted))}

	if m.client != nil {
		res.Key = m.objectKey(name)
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(m.cfg.S3.Bucket),
			Key:           aws.String(res.Key),
			Body:          bytes.NewReader(encrypted),
			ContentLength: aws.Int64(res.Size),
		})
		if err != nil {
			return res, m.fail(fmt.Errorf("upload to s3: %w", err))
		}
	}

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("prune backups", "error", err)
	}

	m.setStatus(Status{State: StateIdle, LastBackup: &started, LastFile: name})
	m.logger.Info("backup complete", "file", name, "bytes", res.Size, "uploaded", res.Key != "")
	return res, nil
}

// snapshot writes a consistent copy of the live database to path and
// returns its bytes.
func (m *Manager) snapshot(ctx context.Context, path string) ([]byte, error) {
	os.Remove(path)
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (m *Manager) objectKey(name string) string {
	prefix := strings.Trim(m.cfg.S3.Prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Snapshots lists the encrypted snapshot files in the backup dir, newest first.
func (m *Manager) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, filePrefix) && strings.HasSuffix(n, fileSuffix) {
			names = append(names, n)
		}
	}
	// The timestamp layout sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// prune removes snapshots beyond the retention count, locally and remotely.
func (m *Manager) prune(ctx context.Context) error {
	names, err := m.Snapshots()
	if err != nil {
		return err
	}
	if len(names) <= m.cfg.Retention {
		return nil
	}

	var errs []error
	for _, name := range names[m.cfg.Retention:] {
		if err := os.Remove(filepath.Join(m.cfg.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
		if m.client == nil {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(m.objectKey(name)),
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete s3 object %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
