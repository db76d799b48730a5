package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rngallery/rngallery/internal/upload"
)

var ErrNotSeekable = errors.New("filedrop upload needs a seekable file")

// Storage is the S3-compatible filedrop bucket the encoder picks uploads up from.
type Storage struct {
	client   *s3.Client
	bucket   string
	prefix   string
	maxBytes int64
}

type Config struct {
	Endpoint       string
	Bucket         string
	Prefix         string
	AccessKey      string
	SecretKey      string
	Region         string
	MaxUploadBytes int64
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &Storage{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		maxBytes: cfg.MaxUploadBytes,
	}, nil
}

// ObjectKey is where the upload with the given key is stored.
func (s *Storage) ObjectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '"' || r == '\\' || r < 0x20 {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PutUpload stores file under the upload key and checks the stored size.
func (s *Storage) PutUpload(ctx context.Context, key string, file upload.File, onProgress func(loaded, total int64)) error {
	if s == nil {
		return fmt.Errorf("storage not initialized")
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return fmt.Errorf("file too large: %d > %d", file.Size, s.maxBytes)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	seeker, ok := src.(io.ReadSeeker)
	if !ok {
		return ErrNotSeekable
	}

	objectKey := s.ObjectKey(key)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(objectKey),
		Body:               newProgressReadSeeker(seeker, file.Size, onProgress),
		ContentLength:      aws.Int64(file.Size),
		ContentType:        aws.String(file.MIMEType),
		ContentDisposition: aws.String(fmt.Sprintf(`inline; filename="%s"`, sanitizeFilename(file.Name))),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectKey, err)
	}

	size, _, err := s.HeadObject(ctx, objectKey)
	if err != nil {
		return err
	}
	if size != file.Size {
		return fmt.Errorf("stored %d bytes for %s, expected %d", size, objectKey, file.Size)
	}
	return nil
}

func (s *Storage) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}

func (s *Storage) HeadObject(ctx context.Context, key string) (int64, string, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, "", fmt.Errorf("head object: %w", err)
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	ct := ""
	if out.ContentType != nil {
		ct = *out.ContentType
	}
	return size, ct, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}

	return nil
}

// progressReadSeeker reports read progress. The SDK may read the body more
// than once (checksums, signing), so a seek moves the reported position too.
type progressReadSeeker struct {
	rs         io.ReadSeeker
	loaded     int64
	total      int64
	onProgress func(loaded, total int64)
}

func newProgressReadSeeker(rs io.ReadSeeker, total int64, onProgress func(loaded, total int64)) *progressReadSeeker {
	return &progressReadSeeker{rs: rs, total: total, onProgress: onProgress}
}

func (p *progressReadSeeker) Read(b []byte) (int, error) {
	n, err := p.rs.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.loaded, p.total)
		}
	}
	return n, err
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.rs.Seek(offset, whence)
	if err == nil {
		p.loaded = pos
	}
	return pos, err
}

var _ upload.Collaborators = (*FiledropTransfer)(nil)

// FiledropTransfer sends the file bytes to the bucket and leaves key
// requests, finalizing and status checks to the wrapped collaborators.
type FiledropTransfer struct {
	upload.Collaborators
	store *Storage
}

func NewFiledropTransfer(c upload.Collaborators, store *Storage) *FiledropTransfer {
	return &FiledropTransfer{Collaborators: c, store: store}
}

func (t *FiledropTransfer) Upload(ctx context.Context, key string, file upload.File, onProgress func(loaded, total int64)) error {
	return t.store.PutUpload(ctx, key, file, onProgress)
}

// Finalize removes the stored object when the backend refuses the upload
// for good, since nothing will ever encode it.
func (t *FiledropTransfer) Finalize(ctx context.Context, key string) error {
	err := t.Collaborators.Finalize(ctx, key)
	if err == nil {
		return nil
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && !temp.Temporary() {
		if delErr := t.store.DeleteObject(ctx, t.store.ObjectKey(key)); delErr != nil {
			slog.Warn("storage: failed to remove refused upload", "key", key, "error", delErr)
		}
	}
	return err
}
