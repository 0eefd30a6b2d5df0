package analyzer

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kikiluvv/cuepoint/internal/logging"
	"github.com/rs/zerolog"
)

// ObjectGetter is the part of the S3 client used for downloads
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures how the S3 client is built
type S3Options struct {
	Region  string
	Profile string
	TempDir string
}

// S3Analyzer downloads s3://bucket/key objects to a temporary file and hands
// them to next, so they are analyzed like local files
type S3Analyzer struct {
	logger zerolog.Logger
	next   Analyzer
	opts   S3Options

	once      sync.Once
	client    ObjectGetter
	clientErr error
}

// NewS3Analyzer creates an S3 analyzer. The AWS client is created on first use.
func NewS3Analyzer(logger zerolog.Logger, next Analyzer, opts S3Options) *S3Analyzer {
	return &S3Analyzer{
		logger: logging.WithComponent(logger, "s3_analyzer"),
		next:   next,
		opts:   opts,
	}
}

// WithClient replaces the lazily built AWS client
func (a *S3Analyzer) WithClient(client ObjectGetter) *S3Analyzer {
	a.once.Do(func() {})
	a.client = client
	return a
}

// NewS3Client loads the default AWS credential chain, optionally pinned to
// a region and shared-config profile
func NewS3Client(ctx context.Context, region, profile string) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (a *S3Analyzer) getClient(ctx context.Context) (ObjectGetter, error) {
	a.once.Do(func() {
		client, err := NewS3Client(ctx, a.opts.Region, a.opts.Profile)
		if err != nil {
			a.clientErr = err
			return
		}
		a.client = client
	})
	return a.client, a.clientErr
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedSource, uri)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("%w: not an s3 uri: %s", ErrUnsupportedSource, uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: s3 uri needs a bucket and key: %s", ErrUnsupportedSource, uri)
	}
	return u.Host, key, nil
}

// Analyze downloads the object and analyzes the local copy
func (a *S3Analyzer) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}

	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}

	localPath, cleanup, err := a.download(ctx, client, bucket, key)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result, err := a.next.Analyze(ctx, localPath)
	if err != nil {
		return nil, err
	}
	result.setMeta("source", uri)
	return result, nil
}

// download copies the object into a new temporary file and returns its path
// plus a cleanup function that removes it
func (a *S3Analyzer) download(ctx context.Context, client ObjectGetter, bucket, key string) (string, func(), error) {
	a.logger.Debug().Str("bucket", bucket).Str("key", key).Msg("downloading from S3")

	tmpFile, err := os.CreateTemp(a.opts.TempDir, "cuepoint-s3-*"+path.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmpFile.Name()) }

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tmpFile.Close()
		cleanup()
		return "", nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	n, err := io.Copy(tmpFile, result.Body)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	a.logger.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("downloaded from S3")
	return tmpFile.Name(), cleanup, nil
}
