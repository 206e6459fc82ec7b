package blobstore

import (
	"chupload/pkg/utils"
	"context"
	"errors"
	"io"
	"os"
)

type ChunkedFile struct {
	ChunkID int64
	Data    []byte
}

type ChunkFunc func(ctx context.Context, chunk ChunkedFile) error

// NumChunks is the number of chunks a file of fileSize splits into. A file
// that is an exact multiple of chunkSize has no trailing empty chunk.
func NumChunks(fileSize, chunkSize int64) int64 {
	if fileSize <= 0 || chunkSize <= 0 {
		return 0
	}

	return (fileSize + chunkSize - 1) / chunkSize
}

// ReadFileInChunks reads filePath sequentially, handing each chunk to fn.
// Only one chunk is held in memory at a time.
func ReadFileInChunks(ctx context.Context, filePath string, chunkSize int64, fn ChunkFunc) (err error) {
	defer utils.Bench2("ReadFileInChunks")()

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, chunkSize)

	for chunkID := int64(0); ; chunkID++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(file, buf)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}

		if err := fn(ctx, ChunkedFile{ChunkID: chunkID, Data: buf[:n]}); err != nil {
			return err
		}

		if n < len(buf) {
			return nil
		}
	}
}
