// Package objectstore is the (id, name)-addressed blob store of spec
// §5 backing file and repo artifact payloads: writes key on the pair,
// deletes are idempotent and tolerated as eventually consistent.
// Grounded on Lens's S3Storage (same aws-sdk-go-v2 config/credentials/s3
// wiring, same bucket-ensure-on-start pattern), generalised here to use
// manager.Uploader/Downloader for multipart-safe large payloads and a
// cenkalti/backoff/v4 retry around delete so a transient S3 error
// doesn't surface as a failed idempotent delete.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"

	thoriumerrors "github.com/thorium-sh/thorium/pkg/errors"
)

// Config describes the backing S3/MinIO endpoint.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	URLExpiry       time.Duration
}

// Store is the (id, name)-addressed object store.
type Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	presigner  *s3.PresignClient
	bucket     string
	urlExpiry  time.Duration
}

// Open connects to the configured endpoint and ensures the bucket
// exists, mirroring the auto-create-on-start behaviour of the teacher's
// S3Storage constructor.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: cfg.Endpoint, HostnameImmutable: true}, nil
	})
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "loading object store config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = cfg.UsePathStyle })

	if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, thoriumerrors.Wrap(err, "ensuring bucket exists")
	}

	urlExpiry := cfg.URLExpiry
	if urlExpiry == 0 {
		urlExpiry = time.Hour
	}
	return &Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		urlExpiry:  urlExpiry,
	}, nil
}

func ensureBucket(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	var ownedByOther *types.BucketAlreadyExists
	if err != nil && !errors.As(err, &owned) && !errors.As(err, &ownedByOther) {
		return err
	}
	return nil
}

// key implements the (id, name) addressing scheme: objects never share
// a key across ids, so two artifacts named identically never collide.
func key(id, name string) string { return id + "/" + name }

// Put uploads data addressed by (id, name), overwriting any existing
// object at that address.
func (s *Store) Put(ctx context.Context, id, name string, data io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(id, name)),
		Body:   data,
	})
	if err != nil {
		return thoriumerrors.Wrap(err, "uploading object")
	}
	return nil
}

func (s *Store) PutBytes(ctx context.Context, id, name string, data []byte) error {
	return s.Put(ctx, id, name, bytes.NewReader(data))
}

// Get downloads the object at (id, name). A missing object is reported
// through errors.NotFound so callers can distinguish "never written"
// from a genuine backend failure.
func (s *Store) Get(ctx context.Context, id, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(id, name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, thoriumerrors.NewNotFound("object not found")
		}
		return nil, thoriumerrors.Wrap(err, "downloading object")
	}
	return out.Body, nil
}

func (s *Store) GetBytes(ctx context.Context, id, name string) ([]byte, error) {
	r, err := s.Get(ctx, id, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, thoriumerrors.Wrap(err, "reading object body")
	}
	return b, nil
}

// Delete removes the object at (id, name). Deletes are idempotent: a
// missing object is not an error, and a transient backend error is
// retried a bounded number of times before being surfaced, since spec
// §5 treats delete as eventually consistent rather than immediate.
func (s *Store) Delete(ctx context.Context, id, name string) error {
	op := func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key(id, name)),
		})
		return err
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return thoriumerrors.NewTransientUpstream("deleting object", err)
	}
	return nil
}

// URL returns a time-limited presigned URL for direct client download.
func (s *Store) URL(ctx context.Context, id, name string) (string, error) {
	res, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key(id, name)),
	}, s3.WithPresignExpires(s.urlExpiry))
	if err != nil {
		return "", thoriumerrors.Wrap(err, "presigning object url")
	}
	return res.URL, nil
}
