package chunks

import (
	"chupload/pkg/blobstore"
	"context"
	"fmt"
	"io"
	"os"
)

// ChunkContext is everything the later stages need to know about one chunk.
// It is built once per request and passed along by value.
type ChunkContext struct {
	Size     int64
	Index    int64
	MaxChunk int64

	Chunk     []byte
	ChunkPath string

	Basename string
	Tempname string
	Destname string

	Fingerprint string
}

// Final reports whether cc carries the chunk that triggers the merge.
func (cc ChunkContext) Final() bool {
	return cc.Index == cc.MaxChunk
}

// MaxChunk is the index of the last chunk of a file of the given size. An
// exact multiple of chunkSize does not get a trailing empty chunk.
func MaxChunk(size, chunkSize int64) int64 {
	maxChunk := size / chunkSize
	if size%chunkSize == 0 {
		maxChunk--
	}

	return maxChunk
}

func (u *Uploader) checkConstraints(ctx context.Context, md ChunkMetadata, payload ChunkPayload) (ChunkContext, error) {
	cfg := u.cfg
	cc := ChunkContext{}

	if md.Size < 1 {
		return cc, NewError(ErrnoFilesizeInvalid, fmt.Sprintf("size %d", md.Size), nil)
	}

	if md.Index < 0 {
		return cc, NewError(ErrnoIndexUndersized, fmt.Sprintf("index %d", md.Index), nil)
	}

	if md.Size > cfg.MaxFilesize {
		return cc, NewError(ErrnoFilesizeOversized,
			fmt.Sprintf("size %d > max filesize %d", md.Size, cfg.MaxFilesize), nil)
	}

	// index*chunk > max, without the overflow
	if md.Index > cfg.MaxFilesize/cfg.ChunkSize {
		return cc, NewError(ErrnoIndexOversized,
			fmt.Sprintf("index %d out of range", md.Index), nil)
	}

	chunk, err := u.readChunk(ctx, payload.Path)
	if err != nil {
		return cc, err
	}

	u.logger(ctx).Debug().
		Str("name", md.Name).
		Int64("index", md.Index).
		Int("chunk_size", len(chunk)).
		Msg("chunk received")

	cc.Basename = u.hooks.Basename(md)
	cc.Size = md.Size
	cc.Index = md.Index
	cc.MaxChunk = MaxChunk(md.Size, cfg.ChunkSize)
	cc.Chunk = chunk
	cc.ChunkPath = payload.Path
	cc.Tempname = u.temp.Path(cc.Basename)
	cc.Destname = u.dest.Path(cc.Basename)
	cc.Fingerprint = md.Fingerprint

	if cc.Tempname == u.temp.Dir() || cc.Destname == u.dest.Dir() {
		return cc, NewError(ErrnoDataIncomplete, fmt.Sprintf("unusable basename %q", cc.Basename), nil)
	}

	exists, err := blobstore.Exists(cc.Destname)
	if err != nil {
		return cc, NewError(ErrnoDeleteFailed, "cannot stat destination", err)
	}

	if exists {
		if err := blobstore.Remove(cc.Destname); err != nil {
			return cc, NewError(ErrnoDeleteFailed, "cannot delete stale destination", err)
		}

		u.logger(ctx).Info().Str("dest", cc.Destname).Msg("deleted stale destination")
	}

	return cc, nil
}

// readChunk loads the chunk source, reading at most one byte past the chunk
// size so an oversized payload is caught without buffering all of it.
func (u *Uploader) readChunk(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewError(ErrnoWriteFailed, "cannot open chunk source", err)
	}

	chunk, err := io.ReadAll(io.LimitReader(f, u.cfg.ChunkSize+1))
	f.Close()
	if err != nil {
		return nil, NewError(ErrnoWriteFailed, "cannot read chunk source", err)
	}

	if int64(len(chunk)) > u.cfg.ChunkSize {
		u.removeQuietly(ctx, path, "chunk source")

		return nil, NewError(ErrnoChunkOversized,
			fmt.Sprintf("chunk larger than %d bytes", u.cfg.ChunkSize), nil)
	}

	return chunk, nil
}
