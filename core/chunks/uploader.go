package chunks

import (
	"chupload/core/api"
	"chupload/pkg/blobstore"
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Uploader accepts the chunks of many uploads. Uploads are told apart by
// basename only: two clients sending the same name at the same time
// corrupt each other, which the merge reports as MergeUnordered.
type Uploader struct {
	cfg   Config
	temp  *blobstore.LocalFS
	dest  *blobstore.LocalFS
	hooks Hooks
	log   zerolog.Logger
}

// New validates cfg, creates the working directories and returns a ready
// Uploader. Failures carry one of the construction errnos.
func New(cfg Config, opts ...Option) (*Uploader, error) {
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	temp, dest, err := prepareDirs(cfg)
	if err != nil {
		return nil, err
	}

	u := &Uploader{
		cfg:  cfg,
		temp: temp,
		dest: dest,
		log:  log.Logger,
	}

	for _, opt := range opts {
		opt(u)
	}

	u.hooks = u.hooks.withDefaults()
	u.log = u.log.With().Str("component", "chunks").Logger()

	return u, nil
}

func (u *Uploader) Config() Config {
	return u.cfg
}

func (u *Uploader) TempPath(basename string) string {
	return u.temp.Path(basename)
}

func (u *Uploader) DestPath(basename string) string {
	return u.dest.Path(basename)
}

// Upload runs one chunk through the pipeline and maps the outcome to a
// response.
func (u *Uploader) Upload(ctx context.Context, req Request) api.Response {
	result, err := u.upload(ctx, req)
	if err != nil {
		u.logger(ctx).Warn().Err(err).Int("errno", int(CodeOf(err))).Msg("chunk rejected")
		return api.BuildResponse(err, nil)
	}

	return api.BuildResponse(nil, result)
}

func (u *Uploader) upload(ctx context.Context, req Request) (*api.ChunkResult, error) {
	md, payload, err := ValidateRequest(req, u.cfg.PostFieldPrefix, u.cfg.RequireFingerprint)
	if err != nil {
		return nil, err
	}

	cc, err := u.checkConstraints(ctx, md, payload)
	if err != nil {
		return nil, err
	}

	if err := PackChunk(cc, u.locking()); err != nil {
		return nil, err
	}

	u.removeQuietly(ctx, cc.ChunkPath, "chunk source")

	if cc.Index == 0 {
		if err := runHook(ctx, u.hooks.PreProcessing, cc, ErrnoPreProcFail, "pre-processing failed"); err != nil {
			return nil, err
		}
	}

	if err := u.processChunk(ctx, cc); err != nil {
		u.removeQuietly(ctx, cc.Tempname, "accumulation file")
		return nil, err
	}

	result := &api.ChunkResult{Path: cc.Basename, Index: cc.Index}

	if !cc.Final() {
		return result, nil
	}

	if err := u.finalize(ctx, cc); err != nil {
		return nil, err
	}

	u.logger(ctx).Info().
		Str("basename", cc.Basename).
		Int64("size", cc.Size).
		Msg("file successfully uploaded")

	result.Done = true

	return result, nil
}

func (u *Uploader) processChunk(ctx context.Context, cc ChunkContext) error {
	if u.cfg.RequireFingerprint {
		if got := u.hooks.Fingerprint(cc.Chunk); got != cc.Fingerprint {
			return NewError(ErrnoFingerprintInvalid, "fingerprint mismatch on chunk", nil)
		}
	}

	return runHook(ctx, u.hooks.ChunkProcessing, cc, ErrnoChunkProcFail, "chunk processing failed")
}

// finalize merges the accumulation file into the destination. A merge that
// lost the lock race leaves both files alone, minus the final chunk, so the
// client can resend that chunk. Otherwise the accumulation file is gone
// afterwards whatever the outcome.
func (u *Uploader) finalize(ctx context.Context, cc ChunkContext) error {
	err := MergeChunks(cc, u.cfg.ChunkSize, u.locking())
	if CodeOf(err) == ErrnoBusy {
		if rerr := unpackFinal(cc); rerr != nil {
			u.logger(ctx).Error().Err(rerr).Str("basename", cc.Basename).Msg("cannot roll back final chunk")
			u.removeQuietly(ctx, cc.Tempname, "accumulation file")
		}

		return err
	}

	u.removeQuietly(ctx, cc.Tempname, "accumulation file")

	if err != nil {
		u.removeQuietly(ctx, cc.Destname, "destination")
		u.logger(ctx).Warn().Err(err).Str("basename", cc.Basename).Msg("broken chunk")

		return err
	}

	err = runHook(ctx, u.hooks.PostProcessing, cc, ErrnoPostProcFail, "post-processing failed")
	if err != nil {
		u.removeQuietly(ctx, cc.Destname, "destination")
		u.logger(ctx).Error().Err(err).Str("basename", cc.Basename).Msg("post-processing failed")

		return err
	}

	return nil
}

func (u *Uploader) locking() bool {
	return !u.cfg.DisableLocks
}

// removeQuietly deletes a file the pipeline no longer needs. Failing to do
// so is logged and otherwise ignored.
func (u *Uploader) removeQuietly(ctx context.Context, path, what string) {
	if err := blobstore.Remove(path); err != nil {
		u.logger(ctx).Error().Err(err).Str("path", path).Msg("failed to delete " + what)
	}
}

// logger prefers the request scoped logger from ctx and falls back to the
// one the Uploader was built with.
func (u *Uploader) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}

	return &u.log
}
