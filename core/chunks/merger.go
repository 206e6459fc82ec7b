package chunks

import (
	"chupload/pkg/utils"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
)

// MergeChunks rebuilds the destination file from the accumulation file,
// checking every order marker on the way. It neither deletes the
// accumulation file nor cleans up a half written destination.
func MergeChunks(cc ChunkContext, chunkSize int64, lock bool) error {
	defer utils.Bench2("merge " + cc.Basename)()

	src, err := os.Open(cc.Tempname)
	if err != nil {
		return NewError(ErrnoMergeFailed, "cannot open accumulation file", err)
	}
	defer src.Close()

	if lock {
		srcLock := flock.New(cc.Tempname)

		locked, err := srcLock.TryRLock()
		if err != nil || !locked {
			return NewError(ErrnoBusy, "accumulation file is locked", err)
		}
		defer srcLock.Unlock()

		dstLock := flock.New(cc.Destname)

		locked, err = dstLock.TryLock()
		if err != nil || !locked {
			return NewError(ErrnoBusy, "destination is locked", err)
		}
		defer dstLock.Unlock()
	}

	dst, err := os.OpenFile(cc.Destname, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return NewError(ErrnoMergeFailed, "cannot open destination", err)
	}

	if err := copyChunks(dst, src, cc.MaxChunk, chunkSize); err != nil {
		dst.Close()
		return err
	}

	if err := dst.Close(); err != nil {
		return NewError(ErrnoMergeFailed, "cannot close destination", err)
	}

	return nil
}

// copyChunks writes maxChunk marked chunks and the unmarked last one from
// src to dst.
func copyChunks(dst *os.File, src io.Reader, maxChunk, chunkSize int64) error {
	if err := dst.Truncate(0); err != nil {
		return NewError(ErrnoMergeFailed, "cannot truncate destination", err)
	}

	buf := make([]byte, chunkSize)
	mark := make([]byte, MarkerSize)

	for i := int64(0); i < maxChunk; i++ {
		if _, err := io.ReadFull(src, buf); err != nil {
			return readError(err, fmt.Sprintf("chunk %d is short", i))
		}

		if _, err := dst.Write(buf); err != nil {
			return NewError(ErrnoMergeFailed, "cannot write destination", err)
		}

		if _, err := io.ReadFull(src, mark); err != nil {
			return readError(err, fmt.Sprintf("marker of chunk %d is missing", i))
		}

		if got := binary.LittleEndian.Uint16(mark); got != uint16(i) {
			return NewError(ErrnoMergeUnordered,
				fmt.Sprintf("expected marker %d, found %d", uint16(i), got), nil)
		}
	}

	if _, err := io.CopyN(dst, src, chunkSize); err != nil && !errors.Is(err, io.EOF) {
		return NewError(ErrnoMergeFailed, "cannot copy last chunk", err)
	}

	return nil
}

// readError tells a truncated accumulation file, which means chunks went
// missing, apart from a failing disk.
func readError(err error, msg string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewError(ErrnoMergeUnordered, msg, nil)
	}

	return NewError(ErrnoMergeFailed, msg, err)
}
