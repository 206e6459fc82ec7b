package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EnsureDir(t *testing.T) {
	root := t.TempDir()

	fs, err := NewLocalFS(filepath.Join(root, "a", "b"))
	require.NoError(t, err)

	require.NoError(t, EnsureDir(fs.Dir()))
	require.NoError(t, EnsureDir(fs.Dir()), "existing directories are fine")

	stat, err := os.Stat(fs.Dir())
	require.NoError(t, err)
	require.True(t, stat.IsDir())

	assert.Equal(t, filepath.Join(fs.Dir(), "x.bin"), fs.Path("x.bin"))

	t.Run("file in the way", func(t *testing.T) {
		file := filepath.Join(root, "file")
		require.NoError(t, os.WriteFile(file, nil, 0o644))

		assert.ErrorIs(t, EnsureDir(file), ErrNotDirectory)
	})
}

func Test_ExistsAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x")

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Remove(path), "removing a missing file is not an error")

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ok, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, Remove(path))

	ok, err = Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_ReadFileInChunks(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		size     int
		expected []int
	}{
		{"file smaller than a chunk", 3, []int{3}},
		{"file size is a multiple of chunk size", 8, []int{4, 4}},
		{"file size is not a multiple of chunk size", 9, []int{4, 4, 1}},
		{"empty file", 0, []int{}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data")
			data := make([]byte, c.size)
			for i := range data {
				data[i] = byte(i)
			}
			require.NoError(t, os.WriteFile(path, data, 0o644))

			sizes := []int{}
			joined := []byte{}

			err := ReadFileInChunks(ctx, path, 4, func(ctx context.Context, chunk ChunkedFile) error {
				require.Equal(t, int64(len(sizes)), chunk.ChunkID)

				sizes = append(sizes, len(chunk.Data))
				joined = append(joined, chunk.Data...)
				return nil
			})
			require.NoError(t, err)

			assert.Equal(t, c.expected, sizes)
			assert.Equal(t, data, joined)
			assert.Equal(t, int64(len(c.expected)), NumChunks(int64(c.size), 4))
		})
	}

	t.Run("callback errors stop reading", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data")
		require.NoError(t, os.WriteFile(path, make([]byte, 12), 0o644))

		boom := errors.New("boom")
		calls := 0

		err := ReadFileInChunks(ctx, path, 4, func(ctx context.Context, chunk ChunkedFile) error {
			calls++
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (fu *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if fu.err != nil {
		return nil, fu.err
	}

	fu.input = input

	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	fu.body = body

	return &manager.UploadOutput{}, nil
}

func Test_S3Archiver(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("merged"), 0o644))

	fu := &fakeUploader{}
	archiver := NewS3ArchiverWith(fu, "uploads", "chupload/2026")

	url, err := archiver.Archive(ctx, path, "report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "s3://uploads/chupload/2026/report.pdf", url)
	assert.Equal(t, "uploads", *fu.input.Bucket)
	assert.Equal(t, "chupload/2026/report.pdf", *fu.input.Key)
	assert.Equal(t, int64(6), *fu.input.ContentLength)
	assert.Equal(t, "merged", string(fu.body))

	t.Run("upload failure", func(t *testing.T) {
		_, err := NewS3ArchiverWith(&fakeUploader{err: errors.New("denied")}, "uploads", "").Archive(ctx, path, "x")
		assert.Error(t, err)
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := archiver.Archive(ctx, filepath.Join(t.TempDir(), "nope"), "x")
		assert.Error(t, err)
	})
}
