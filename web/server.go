package web

import (
	"chupload/core/chunks"
	"chupload/core/database"
	"chupload/core/ledger"
	"chupload/core/notifiers"
	"chupload/core/workers"
	"chupload/pkg/blobstore"
	"chupload/pkg/brokers"
	"chupload/pkg/config"
	"chupload/web/middlewares"
	"chupload/web/routes"
	"context"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// formOverhead is the room left in a request body for the form fields and
// multipart framing around one chunk.
const formOverhead = 1024 * 1024

func UploaderConfig(cfg config.UploadConfig) chunks.Config {
	return chunks.Config{
		PostFieldPrefix:    cfg.PostFieldPrefix,
		ChunkSize:          int64(cfg.ChunkSize),
		MaxFilesize:        int64(cfg.MaxFilesize),
		RequireFingerprint: cfg.RequireFingerprint,
		TempDir:            cfg.TempDir,
		DestDir:            cfg.DestDir,
		DisableLocks:       !cfg.UseLocks,
	}
}

// Server is the upload service with everything it opened.
type Server struct {
	Echo     *echo.Echo
	Uploader *chunks.Uploader

	closers []io.Closer
}

func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}

// NewServer assembles the upload service. The ledger is used when a
// database is configured; announcing uploads and relaying archive results
// need redis.
func NewServer(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*Server, error) {
	srv := &Server{}

	hooks := chunks.Hooks{}
	if cfg.Upload.StripDirs {
		hooks.Basename = chunks.StripDirs
	}

	var postProcessing []chunks.HookFunc

	if cfg.DbName != "" {
		db, err := workers.OpenDB(ctx, cfg.DbName)
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, db)

		repo, err := ledger.Open(ctx, db)
		if err != nil {
			srv.Close()
			return nil, err
		}

		postProcessing = append(postProcessing, repo.RecordHook(int64(cfg.Upload.ChunkSize)))
	}

	progress := brokers.NewSSEBroker("upload_progress")
	progress.Start(ctx)

	if cfg.RedisURL != "" {
		conn, queues, err := workers.OpenQueues(cfg)
		if err != nil {
			srv.Close()
			return nil, err
		}
		srv.closers = append(srv.closers, conn)

		postProcessing = append(postProcessing, notifiers.NewUploadNotifier(queues.Completed).AnnounceHook())

		relay := brokers.NewQueueRelay(relayName(), queues.Archived, "", notifiers.ArchivedMessage, progress)
		relay.Start(ctx)
	}

	hooks.PostProcessing = chunks.Chain(postProcessing...)

	uploader, err := chunks.New(
		UploaderConfig(cfg.Upload),
		chunks.WithLogger(logger),
		chunks.WithHooks(hooks),
	)
	if err != nil {
		srv.Close()
		return nil, err
	}
	srv.Uploader = uploader

	spool, err := blobstore.NewLocalFS(cfg.Upload.SpoolDir)
	if err == nil {
		err = blobstore.EnsureDir(spool.Dir())
	}
	if err != nil {
		srv.Close()
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middlewares.RequestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			middlewares.RequestIDHeaderKey,
		},
		ExposeHeaders: []string{
			echo.HeaderContentLength,
			middlewares.RequestIDHeaderKey,
		},
	}))

	routes.Register(
		e.Group(""),
		&routes.ChunkHandler{Uploader: uploader, Spool: spool, Progress: progress},
		&routes.SSEHandler{Progress: progress},
		middlewares.BodyLimit(int64(cfg.Upload.ChunkSize)+formOverhead),
	)

	srv.Echo = e

	return srv, nil
}

// relayName gives every server its own consumer on the archived queue.
func relayName() string {
	id, err := database.NewID()
	if err != nil {
		return "relay"
	}

	return "relay-" + id
}
