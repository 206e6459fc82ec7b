package chunks

import (
	"encoding/binary"
	"os"

	"github.com/gofrs/flock"
)

// MarkerSize is the length of the order marker written after every chunk
// but the last.
const MarkerSize = 2

func marker(index int64) []byte {
	b := make([]byte, MarkerSize)
	binary.LittleEndian.PutUint16(b, uint16(index))

	return b
}

// PackChunk appends cc.Chunk to the accumulation file, truncating it first
// when cc carries index 0. Every chunk before the last is followed by its
// order marker. The chunk source is left alone.
func PackChunk(cc ChunkContext, lock bool) error {
	f, err := os.OpenFile(cc.Tempname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return NewError(ErrnoWriteFailed, "cannot open accumulation file", err)
	}
	defer f.Close()

	if lock {
		fl := flock.New(cc.Tempname)

		locked, err := fl.TryLock()
		if err != nil || !locked {
			return NewError(ErrnoBusy, "accumulation file is locked", err)
		}
		defer fl.Unlock()
	}

	if cc.Index == 0 {
		if err := f.Truncate(0); err != nil {
			return NewError(ErrnoWriteFailed, "cannot truncate accumulation file", err)
		}
	}

	buf := cc.Chunk
	if cc.Index < cc.MaxChunk {
		buf = append(buf[:len(buf):len(buf)], marker(cc.Index)...)
	}

	if _, err := f.Write(buf); err != nil {
		return NewError(ErrnoWriteFailed, "cannot write accumulation file", err)
	}

	return nil
}

// unpackFinal takes the unmarked final chunk off the end of the accumulation
// file again, leaving it as it was before that chunk arrived.
func unpackFinal(cc ChunkContext) error {
	info, err := os.Stat(cc.Tempname)
	if err != nil {
		return err
	}

	size := info.Size() - int64(len(cc.Chunk))
	if size < 0 {
		size = 0
	}

	return os.Truncate(cc.Tempname, size)
}
