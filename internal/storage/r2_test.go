package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapS3Error(t *testing.T) {
	assert.ErrorIs(t, wrapS3Error(&types.NoSuchKey{}), ErrNotFound)
	assert.ErrorIs(t, wrapS3Error(&smithy.GenericAPIError{Code: "AccessDenied"}), ErrAccessDenied)

	other := errors.New("connection reset")
	assert.ErrorIs(t, wrapS3Error(other), other)
	assert.NoError(t, wrapS3Error(nil))
}

func TestR2Storage_PublicURL(t *testing.T) {
	s, err := NewR2Storage(R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "voice-audio",
		PublicURL:       "https://audio.example.com/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	url, err := s.URL(context.Background(), "voice/a.mp3", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://audio.example.com/voice/a.mp3", url)

	_, err = s.URL(context.Background(), "../a.mp3", 0)
	assert.True(t, IsInvalidKey(err))
}
