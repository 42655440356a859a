package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gitvanity/pkg/storage"
	"gitvanity/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Adapter implements storage.Store on an S3 compatible bucket.
type Adapter struct {
	client *s3.Client
	bucket string
	prefix string
}

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string // optional key prefix, e.g. "gitvanity/"
	AccessKeyID     string
	SecretAccessKey string
}

// NewAdapter builds the client and makes sure the bucket exists.
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	// without static keys the default chain (env, shared config, IMDS) applies
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO needs path style: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
			slog.Warn("failed to ensure bucket exists", slog.String("bucket", cfg.Bucket), slog.Any("err", err))
		}
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Adapter{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// transformKey shards like the disk layout: "<prefix><ns>/aa/bbcc...".
func (s *Adapter) transformKey(key storage.Key) string {
	shard, rest := key.Shard()
	return s.prefix + key.Namespace + "/" + shard + "/" + rest
}

func (s *Adapter) Put(ctx context.Context, key storage.Key, data []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.transformKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/cbor"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed: %w", err)
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, key storage.Key) (io.ReadCloser, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	return resp.Body, nil
}

func (s *Adapter) Has(ctx context.Context, key storage.Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.transformKey(key)),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// some S3 implementations only give a generic 404
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}
	return false, err
}

func (s *Adapter) List(ctx context.Context, namespace string) ([]string, error) {
	return s.list(ctx, namespace, "", 0)
}

func (s *Adapter) Expand(ctx context.Context, namespace string, prefix types.HashPrefix) (string, error) {
	p, err := storage.CheckPrefix(prefix)
	if err != nil {
		return "", err
	}
	// two keys are enough to tell unique from ambiguous
	ids, err := s.list(ctx, namespace, p, 2)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", storage.ErrNotFound
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", storage.ErrAmbiguousID, p)
	}
}

// list pages through ListObjectsV2. idPrefix must be at least two
// characters when set; limit 0 means all.
func (s *Adapter) list(ctx context.Context, namespace, idPrefix string, limit int) ([]string, error) {
	base := s.prefix + namespace + "/"
	keyPrefix := base
	if idPrefix != "" {
		keyPrefix += idPrefix[:2] + "/" + idPrefix[2:]
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}

	var ids []string
	p := s3.NewListObjectsV2Paginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			// "<base>aa/bbcc..." -> "aabbcc..."
			rel := strings.TrimPrefix(aws.ToString(obj.Key), base)
			ids = append(ids, strings.Replace(rel, "/", "", 1))
			if limit > 0 && len(ids) >= limit {
				return ids, nil
			}
		}
	}
	return ids, nil
}
