package site

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/capsule/tripoverview/params"
	"github.com/dustin/go-humanize"
)

// Uploader is the part of s3manager.Uploader Publish uses.
type Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// NewUploader returns an S3 uploader for the configured region,
// with credentials from the default AWS chain.
func NewUploader(cfg params.S3Config) (Uploader, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, err
	}
	return s3manager.NewUploader(sess), nil
}

// Publish uploads every file below dir to the configured bucket, keyed by
// its path relative to dir under the configured prefix.
// It returns the number of uploaded files.
func Publish(ctx context.Context, dir string, cfg params.S3Config, up Uploader) (int, error) {
	if cfg.Bucket == "" {
		return 0, nil
	}
	logger := slog.With("site", dir, "bucket", cfg.Bucket)
	count := 0
	var total int64
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := path.Join(cfg.Prefix, filepath.ToSlash(rel))
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}

		input := &s3manager.UploadInput{
			Bucket: aws.String(cfg.Bucket),
			Key:    aws.String(key),
			Body:   f,
		}
		if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
			input.ContentType = aws.String(ct)
		}
		if filepath.Ext(p) == ".geojson" {
			input.ContentType = aws.String("application/geo+json")
		}
		if _, err := up.UploadWithContext(ctx, input); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		logger.Debug("Uploaded", "key", key, "size", humanize.Bytes(uint64(info.Size())))
		count++
		total += info.Size()
		return nil
	})
	if err != nil {
		return count, err
	}
	logger.Info("Published site", "files", count, "size", humanize.Bytes(uint64(total)))
	return count, nil
}
