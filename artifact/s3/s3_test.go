package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/artifact/artifacttest"
)

// fakeBucket is an in-memory stand-in for a single S3 bucket.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (f *fakeBucket) PutObject(_ context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data

	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeBucket) HeadObject(_ context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}

	return &awss3.HeadObjectOutput{}, nil
}

func (f *fakeBucket) DeleteObject(_ context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))

	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &awss3.ListObjectsV2Output{}
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}

	return out, nil
}

func TestStore_Contract(t *testing.T) {
	artifacttest.RunStoreContract(t, New(newFakeBucket(), "trips"))
}

func TestStore_KeyLayout(t *testing.T) {
	bucket := newFakeBucket()
	store := New(bucket, "trips", func(o *Options) { o.Prefix = "plans/" })

	require.NoError(t, store.Save(context.Background(), "sess", "itinerary-1.md", []byte("x")))

	_, ok := bucket.objects["plans/sess/itinerary-1.md"]
	assert.True(t, ok)
}

type mockAPI struct {
	mock.Mock
	API
}

func (m *mockAPI) GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*awss3.GetObjectOutput)
	return out, args.Error(1)
}

func TestStore_GetPropagatesTransportErrors(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("connection reset")
	api.On("GetObject", mock.Anything, mock.MatchedBy(func(in *awss3.GetObjectInput) bool {
		return aws.ToString(in.Bucket) == "trips" && aws.ToString(in.Key) == "tripmesh/s/a.md"
	})).Return(nil, boom)

	_, err := New(api, "trips").Get(context.Background(), "s", "a.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, artifact.ErrNotFound)
	api.AssertExpectations(t)
}
