package chunks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// HookFunc is a gate in the pipeline. Returning an error aborts the current
// chunk; a *Error keeps its own errno, anything else is reported with the
// gate's default errno.
type HookFunc func(ctx context.Context, cc ChunkContext) error

// Hooks are the extension points of an Uploader. Nil fields fall back to
// the defaults.
type Hooks struct {
	// Basename names the accumulation and destination files. Defaults to
	// the client supplied name, taken as-is.
	Basename func(md ChunkMetadata) string
	// Fingerprint digests the bytes of one chunk. Defaults to hex sha256.
	Fingerprint func(chunk []byte) string

	PreProcessing   HookFunc
	ChunkProcessing HookFunc
	PostProcessing  HookFunc
}

func DefaultBasename(md ChunkMetadata) string {
	return md.Name
}

// StripDirs keeps only the last element of the client supplied name, so a
// name cannot point outside the upload directories.
func StripDirs(md ChunkMetadata) string {
	return filepath.Base(filepath.Clean("/" + md.Name))
}

func SHA256Fingerprint(chunk []byte) string {
	sum := sha256.Sum256(chunk)
	return hex.EncodeToString(sum[:])
}

func (h Hooks) withDefaults() Hooks {
	if h.Basename == nil {
		h.Basename = DefaultBasename
	}

	if h.Fingerprint == nil {
		h.Fingerprint = SHA256Fingerprint
	}

	return h
}

// Chain runs fns in order and stops at the first failure.
func Chain(fns ...HookFunc) HookFunc {
	return func(ctx context.Context, cc ChunkContext) error {
		for _, fn := range fns {
			if fn == nil {
				continue
			}

			if err := fn(ctx, cc); err != nil {
				return err
			}
		}

		return nil
	}
}

func runHook(ctx context.Context, fn HookFunc, cc ChunkContext, code Errno, msg string) error {
	if fn == nil {
		return nil
	}

	err := fn(ctx, cc)
	if err == nil {
		return nil
	}

	if CodeOf(err) != 0 {
		return err
	}

	return NewError(code, msg, err)
}
