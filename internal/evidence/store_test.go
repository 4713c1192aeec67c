package evidence

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	if out, _ := args.Get(0).(*s3.PutObjectOutput); out != nil {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestPutUploadsUnderChallengePrefix(t *testing.T) {
	api := &mockS3{}
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "evidence" &&
			strings.HasPrefix(*in.Key, "challenges/c1/u1/") &&
			strings.HasSuffix(*in.Key, ".png") &&
			*in.ContentType == "image/png"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	store := NewS3Store(api, "evidence", "https://cdn.example.com/")
	url, err := store.Put(context.Background(), "c1", "u1", "image/png", 3, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/challenges/c1/u1/"))
	api.AssertExpectations(t)
}

func TestPutRejectsBeforeUpload(t *testing.T) {
	api := &mockS3{}
	store := NewS3Store(api, "evidence", "https://cdn.example.com")

	_, err := store.Put(context.Background(), "c1", "u1", "application/pdf", 3, bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.Put(context.Background(), "c1", "u1", "image/jpeg", MaxImageSize+1, bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrTooLarge)

	api.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestPutWrapsUploadError(t *testing.T) {
	api := &mockS3{}
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	_, err := NewS3Store(api, "evidence", "").Put(context.Background(), "c1", "u1", "image/webp", 1, bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestMemoryPut(t *testing.T) {
	m := NewMemory()
	url, err := m.Put(context.Background(), "c9", "u2", "image/jpeg", 4, bytes.NewReader([]byte("jpeg")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://challenges/c9/u2/"))
	assert.Len(t, m.Objects, 1)
}
