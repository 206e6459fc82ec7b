package web

import (
	"chupload/core/api"
	"chupload/pkg/config"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.AppConfig {
	root := t.TempDir()

	cfg := config.Default()
	cfg.DbName = ""
	cfg.Upload.TempDir = filepath.Join(root, "temp")
	cfg.Upload.DestDir = filepath.Join(root, "dest")
	cfg.Upload.SpoolDir = filepath.Join(root, "spool")

	return cfg
}

func Test_UploaderConfig(t *testing.T) {
	cfg := config.Default().Upload
	cfg.UseLocks = false

	out := UploaderConfig(cfg)
	assert.EqualValues(t, 100*1024, out.ChunkSize)
	assert.EqualValues(t, 10*1024*1024, out.MaxFilesize)
	assert.Equal(t, api.DefaultFieldPrefix, out.PostFieldPrefix)
	assert.True(t, out.DisableLocks)
}

func Test_NewServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("without backing services", func(t *testing.T) {
		srv, err := NewServer(ctx, testConfig(t), zerolog.Nop())
		require.NoError(t, err)
		defer srv.Close()

		rec := httptest.NewRecorder()
		srv.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.DirExists(t, filepath.Dir(srv.Uploader.DestPath("x")))
	})

	t.Run("with a ledger", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DbName = filepath.Join(t.TempDir(), "ledger.db")

		srv, err := NewServer(ctx, cfg, zerolog.Nop())
		require.NoError(t, err)
		srv.Close()

		assert.FileExists(t, cfg.DbName)
	})

	t.Run("invalid upload config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Upload.ChunkSize = 10

		_, err := NewServer(ctx, cfg, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RedisURL = "redis://127.0.0.1:1/0"

		_, err := NewServer(ctx, cfg, zerolog.Nop())
		require.Error(t, err)
	})
}
