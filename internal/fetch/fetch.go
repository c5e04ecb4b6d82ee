// Package fetch resolves dataset locations to local files. Plain paths pass
// through; s3://bucket/key objects are downloaded into a cache directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const scheme = "s3://"

// GetObjectAPI is the part of the S3 client the fetcher uses.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	PathStyle bool
	CacheDir  string
	Logger    *slog.Logger
}

// Fetcher downloads remote datasets once per ETag.
type Fetcher struct {
	client   GetObjectAPI
	cacheDir string
	logger   *slog.Logger
}

// New builds a Fetcher from the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Fetcher, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewWithClient(client, opts.CacheDir, opts.Logger), nil
}

// NewWithClient builds a Fetcher around an existing client.
func NewWithClient(client GetObjectAPI, cacheDir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "pasture-cache")
	}
	return &Fetcher{client: client, cacheDir: cacheDir, logger: logger}
}

// IsRemote reports whether location is an s3:// URI.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, scheme)
}

// ParseURI splits s3://bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	if !IsRemote(uri) {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 uri must name a bucket and an object key: %q", uri)
	}
	return bucket, key, nil
}

// Resolve returns a local file path for location. Local paths are returned
// unchanged. A cached copy is reused while the object's ETag is unchanged.
func (f *Fetcher) Resolve(ctx context.Context, location string) (string, error) {
	if !IsRemote(location) {
		return location, nil
	}
	bucket, key, err := ParseURI(location)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(f.cacheDir, bucket, filepath.FromSlash(key))
	if rel, err := filepath.Rel(f.cacheDir, dest); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("object key escapes cache directory: %q", key)
	}
	etagPath := dest + ".etag"

	in := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
	if etag, err := os.ReadFile(etagPath); err == nil && fileExists(dest) {
		in.IfNoneMatch = aws.String(string(etag))
	}

	out, err := f.client.GetObject(ctx, in)
	if err != nil {
		if notModified(err) {
			f.logger.Debug("using cached dataset", slog.String("location", location), slog.String("path", dest))
			return dest, nil
		}
		return "", fmt.Errorf("failed to download %s: %w", location, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	n, copyErr := io.Copy(tmp, out.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move download into cache: %w", err)
	}

	if out.ETag != nil {
		if err := os.WriteFile(etagPath, []byte(*out.ETag), 0o600); err != nil {
			f.logger.Warn("failed to record etag", slog.String("path", etagPath), slog.String("error", err.Error()))
		}
	} else {
		_ = os.Remove(etagPath)
	}

	f.logger.Info("downloaded dataset",
		slog.String("location", location),
		slog.String("path", dest),
		slog.Int64("bytes", n))
	return dest, nil
}

func notModified(err error) bool {
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotModified
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
