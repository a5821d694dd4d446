// Package s3 provides an ArtifactStore backed by an S3 (or compatible)
// bucket. Objects are stored under <prefix><sessionID>/<artifactID>.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/core"
)

// API is the subset of the S3 client used by Store.
type API interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every object key.
	Prefix string
	// ContentType is set on uploaded objects.
	ContentType string
}

// Store implements core.ArtifactStore on S3.
type Store struct {
	client API
	bucket string
	opts   Options
}

var _ core.ArtifactStore = (*Store)(nil)

// New creates a Store for bucket.
func New(client API, bucket string, optFns ...func(o *Options)) *Store {
	opts := Options{
		Prefix:      "tripmesh/",
		ContentType: "text/markdown; charset=utf-8",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{client: client, bucket: bucket, opts: opts}
}

func (s *Store) sessionPrefix(sessionID string) string {
	return s.opts.Prefix + sessionID + "/"
}

func (s *Store) key(sessionID, artifactID string) string {
	return s.sessionPrefix(sessionID) + artifactID
}

// Save uploads data, overwriting any existing object.
func (s *Store) Save(ctx context.Context, sessionID, artifactID string, data []byte) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(sessionID, artifactID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(s.opts.ContentType),
	})
	if err != nil {
		return fmt.Errorf("put artifact %s: %w", artifactID, err)
	}

	return nil
}

// Get downloads the artifact or returns artifact.ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID, artifactID string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID, artifactID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, artifact.ErrNotFound
		}

		return nil, fmt.Errorf("get artifact %s: %w", artifactID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", artifactID, err)
	}

	return data, nil
}

// List returns the sorted artifact ids stored for the session.
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	prefix := s.sessionPrefix(sessionID)

	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	ids := []string{}

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}

		for _, obj := range page.Contents {
			ids = append(ids, strings.TrimPrefix(aws.ToString(obj.Key), prefix))
		}
	}

	sort.Strings(ids)

	return ids, nil
}

// Delete removes the artifact. S3 deletes are idempotent, so existence is
// checked first to report artifact.ErrNotFound.
func (s *Store) Delete(ctx context.Context, sessionID, artifactID string) error {
	key := s.key(sessionID, artifactID)

	if _, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return artifact.ErrNotFound
		}

		return fmt.Errorf("head artifact %s: %w", artifactID, err)
	}

	if _, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete artifact %s: %w", artifactID, err)
	}

	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *types.NotFound

	return errors.As(err, &nf)
}
