package fsbackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/mediastorage/pkg/record"
)

// S3BackendConfig configures an S3Backend.
type S3BackendConfig struct {
	Client          *s3.Client
	Bucket          string
	KeyPrefix       string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Client builds an S3 client from endpoint/region/credential
// parameters so families can point at S3-compatible object storage (e.g.
// MinIO) via the same config surface.
func NewS3Client(ctx context.Context, cfg S3BackendConfig) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("fsbackend: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// S3Backend implements Backend against an S3 (or S3-compatible) bucket.
// Blob paths map directly onto object keys; there is no directory tree to
// prune, so Unlink's prune flag is accepted but has no effect, and staged
// puts use a "<path>.temp" key made visible by a copy-then-delete "rename"
// since S3 has no atomic move (§4.2's make_permanent contract still holds:
// the final key never appears with partial content, because PutObject and
// CopyObject are each whole-object operations).
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend wraps an already-configured *s3.Client.
func NewS3Backend(client *s3.Client, bucket, keyPrefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: keyPrefix}
}

func (b *S3Backend) key(subpath string) string {
	if b.prefix == "" {
		return subpath
	}
	return path.Join(b.prefix, subpath)
}

func (b *S3Backend) ResolvePath(rec *record.Record) string {
	return rec.ResolvePath()
}

func (b *S3Backend) Get(subpath string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(subpath)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &OpError{Op: "get", Path: subpath, Err: ErrNotFound}
		}
		return nil, &OpError{Op: "get", Path: subpath, Err: err}
	}
	return out.Body, nil
}

func (b *S3Backend) Put(subpath string, src io.Reader, staged bool) error {
	key := b.key(subpath)
	if staged {
		key += StagingSuffix
	}
	buf, err := io.ReadAll(src)
	if err != nil {
		return &OpError{Op: "put", Path: subpath, Err: err}
	}
	_, err = b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   newBytesReadSeeker(buf),
	})
	if err != nil {
		return &OpError{Op: "put", Path: subpath, Err: err}
	}
	return nil
}

// MakePermanent copies the staged object onto its final key and deletes
// the staged one, the closest S3 has to an atomic rename.
func (b *S3Backend) MakePermanent(subpath string) error {
	ctx := context.Background()
	stagedKey := b.key(subpath) + StagingSuffix
	finalKey := b.key(subpath)

	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(finalKey),
		CopySource: aws.String(strings.TrimPrefix(path.Join(b.bucket, stagedKey), "/")),
	})
	if err != nil {
		return &OpError{Op: "make_permanent", Path: subpath, Err: err}
	}

	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(stagedKey),
	}); err != nil {
		return &OpError{Op: "make_permanent", Path: subpath, Err: err}
	}
	return nil
}

// Unlink removes the object at subpath. prune is accepted for interface
// compatibility but is a no-op: S3 keys have no directory entries to prune.
func (b *S3Backend) Unlink(subpath string, prune bool) error {
	_, err := b.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(subpath)),
	})
	if err != nil {
		return &OpError{Op: "unlink", Path: subpath, Err: err}
	}
	return nil
}

func (b *S3Backend) FileExists(subpath string) bool {
	_, err := b.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(subpath)),
	})
	return err == nil
}

// Walk lists every object under the backend's prefix, grouping by the
// directory portion of its key the way the local backend groups files
// under a directory (§4.2's walk contract).
func (b *S3Backend) Walk(yield func(subpath string, filenames []string) error) error {
	ctx := context.Background()
	groups := map[string][]string{}

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("fsbackend: list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			key = strings.TrimPrefix(key, "/")
			if strings.HasSuffix(key, StagingSuffix) {
				continue
			}
			dir, name := path.Split(key)
			dir = strings.TrimSuffix(dir, "/")
			groups[dir] = append(groups[dir], name)
		}
	}

	for dir, names := range groups {
		if err := yield(dir, names); err != nil {
			return err
		}
	}
	return nil
}

// newBytesReadSeeker adapts an in-memory buffer to the io.ReadSeeker the
// S3 SDK needs to compute a Content-Length without buffering twice.
func newBytesReadSeeker(buf []byte) io.ReadSeeker {
	return &bytesReadSeeker{data: buf}
}

type bytesReadSeeker struct {
	data []byte
	pos  int64
}

func (r *bytesReadSeeker) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *bytesReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = int64(len(r.data)) + offset
	default:
		return 0, fmt.Errorf("fsbackend: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("fsbackend: negative seek position")
	}
	r.pos = newPos
	return newPos, nil
}
