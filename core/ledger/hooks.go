package ledger

import (
	"chupload/core/chunks"
	"context"

	"github.com/rs/zerolog"
)

// RecordHook returns a post-processing hook that writes every merged file
// to the ledger. The upload fails when the row cannot be written.
func (repo *Repository) RecordHook(chunkSize int64) chunks.HookFunc {
	return func(ctx context.Context, cc chunks.ChunkContext) error {
		upload, err := NewUpload(cc.Basename, cc.Destname, cc.Size, chunkSize)
		if err != nil {
			return err
		}

		if err := repo.Create(ctx, upload); err != nil {
			return err
		}

		zerolog.Ctx(ctx).Info().
			Str("id", upload.ID).
			Str("basename", upload.Basename).
			Msg("upload recorded")

		return nil
	}
}
