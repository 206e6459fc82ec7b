package chunks

import (
	"chupload/core/api"
	"chupload/pkg/blobstore"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/rs/zerolog"
)

const (
	MinChunkSize = int64(1024)
	MaxChunkSize = int64(2 * 1024 * 1024)

	DefaultChunkSize   = int64(100 * 1024)
	DefaultMaxFilesize = int64(10 * 1024 * 1024)
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

// Config holds the recognized uploader options. Zero values fall back to
// the defaults.
type Config struct {
	PostFieldPrefix    string
	ChunkSize          int64
	MaxFilesize        int64
	RequireFingerprint bool
	TempDir            string
	DestDir            string
	// DisableLocks turns off advisory file locking on the accumulation and
	// destination files.
	DisableLocks bool
}

type Option func(*Uploader)

func WithLogger(logger zerolog.Logger) Option {
	return func(u *Uploader) {
		u.log = logger
	}
}

func WithHooks(hooks Hooks) Option {
	return func(u *Uploader) {
		u.hooks = hooks
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.PostFieldPrefix == "" {
		cfg.PostFieldPrefix = api.DefaultFieldPrefix
	}

	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if cfg.MaxFilesize == 0 {
		cfg.MaxFilesize = DefaultMaxFilesize
	}
}

// Validate checks construction constraints and reports them as Init errors.
func (cfg Config) Validate() error {
	if !prefixPattern.MatchString(cfg.PostFieldPrefix) {
		return NewError(ErrnoPrefixInvalid,
			fmt.Sprintf("invalid field prefix %q", cfg.PostFieldPrefix), nil)
	}

	if cfg.ChunkSize < MinChunkSize {
		return NewError(ErrnoChunkTooSmall,
			fmt.Sprintf("chunk size %d < %d", cfg.ChunkSize, MinChunkSize), nil)
	}

	if cfg.ChunkSize > MaxChunkSize {
		return NewError(ErrnoChunkTooBig,
			fmt.Sprintf("chunk size %d > %d", cfg.ChunkSize, MaxChunkSize), nil)
	}

	if cfg.MaxFilesize < cfg.ChunkSize {
		return NewError(ErrnoMaxFilesizeTooSmall,
			fmt.Sprintf("max filesize %d < chunk size %d", cfg.MaxFilesize, cfg.ChunkSize), nil)
	}

	if cfg.TempDir == "" {
		return NewError(ErrnoDirsNotSet, "temporary dir not set", nil)
	}

	if cfg.DestDir == "" {
		return NewError(ErrnoDirsNotSet, "destination dir not set", nil)
	}

	if filepath.Clean(cfg.TempDir) == filepath.Clean(cfg.DestDir) {
		return NewError(ErrnoDirsIdentical, "temporary and destination dirs must differ", nil)
	}

	return nil
}

func prepareDirs(cfg Config) (temp *blobstore.LocalFS, dest *blobstore.LocalFS, err error) {
	for _, dir := range []string{cfg.TempDir, cfg.DestDir} {
		if err := blobstore.EnsureDir(dir); err != nil {
			return nil, nil, NewError(ErrnoDirsNotCreated,
				fmt.Sprintf("cannot create directory %q", dir), err)
		}
	}

	temp, err = blobstore.NewLocalFS(cfg.TempDir)
	if err != nil {
		return nil, nil, NewError(ErrnoDirsNotCreated, "cannot resolve temporary dir", err)
	}

	dest, err = blobstore.NewLocalFS(cfg.DestDir)
	if err != nil {
		return nil, nil, NewError(ErrnoDirsNotCreated, "cannot resolve destination dir", err)
	}

	if temp.Dir() == dest.Dir() {
		return nil, nil, NewError(ErrnoDirsIdentical, "temporary and destination dirs must differ", nil)
	}

	return temp, dest, nil
}
