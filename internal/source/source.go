// Package source opens input and output locations, which are either local
// paths or s3://bucket/key URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/matsen/cobuy/internal/config"
)

// Scheme is the URL scheme selecting object storage.
const Scheme = "s3"

// ErrInvalidLocation is returned for s3 URLs without a bucket or key.
var ErrInvalidLocation = errors.New("invalid s3 location")

// Object identifies an object in a bucket.
type Object struct {
	Bucket string
	Key    string
}

func (o Object) String() string {
	return Scheme + "://" + o.Bucket + "/" + o.Key
}

// IsRemote reports whether location names an s3 object.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, Scheme+"://")
}

// ParseObject splits an s3://bucket/key URL.
func ParseObject(location string) (Object, error) {
	u, err := url.Parse(location)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if u.Scheme != Scheme {
		return Object{}, fmt.Errorf("%w: scheme %q", ErrInvalidLocation, u.Scheme)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Object{}, fmt.Errorf("%w: %s", ErrInvalidLocation, location)
	}
	return Object{Bucket: u.Host, Key: key}, nil
}

// Open returns a reader for location. The caller must close it.
func Open(ctx context.Context, location string, cfg config.S3Config) (io.ReadCloser, error) {
	if !IsRemote(location) {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		return f, nil
	}

	obj, err := ParseObject(location)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", obj, err)
	}
	return out.Body, nil
}

// Create returns a writer for location. For s3 locations the content is
// staged in a temporary file and uploaded when the writer is closed.
func Create(ctx context.Context, location string, cfg config.S3Config) (io.WriteCloser, error) {
	if !IsRemote(location) {
		if dir := filepath.Dir(location); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating output directory: %w", err)
			}
		}
		f, err := os.Create(location)
		if err != nil {
			return nil, fmt.Errorf("creating output: %w", err)
		}
		return f, nil
	}

	obj, err := ParseObject(location)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp("", "cobuy-upload-*")
	if err != nil {
		return nil, fmt.Errorf("staging upload: %w", err)
	}
	return &uploader{ctx: ctx, client: client, obj: obj, file: tmp}, nil
}

// ReadAll reads the whole of location.
func ReadAll(ctx context.Context, location string, cfg config.S3Config) ([]byte, error) {
	r, err := Open(ctx, location, cfg)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// NewClient builds an s3 client. A non-empty endpoint enables path-style
// addressing (for MinIO and similar). AWS_ACCESS_KEY and AWS_SECRET_KEY, when
// both set, override the default credential chain.
func NewClient(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if access, secret := os.Getenv("AWS_ACCESS_KEY"), os.Getenv("AWS_SECRET_KEY"); access != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access, secret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3opts...), nil
}

type uploader struct {
	ctx    context.Context
	client *s3.Client
	obj    Object
	file   *os.File
	closed bool
}

func (u *uploader) Write(p []byte) (int, error) {
	return u.file.Write(p)
}

// Close uploads the staged content and removes the temporary file.
func (u *uploader) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	defer os.Remove(u.file.Name())
	defer u.file.Close()

	if _, err := u.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding staged upload: %w", err)
	}
	_, err := u.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.obj.Bucket),
		Key:         aws.String(u.obj.Key),
		Body:        u.file,
		ContentType: aws.String(contentType(u.obj.Key)),
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", u.obj, err)
	}
	return nil
}

func contentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".html":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
