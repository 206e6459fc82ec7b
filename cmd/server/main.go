package main

import (
	"chupload/pkg/config"
	"chupload/web"
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath string
		debug      bool
	)

	flag.StringVar(&configPath, "config", "", "path to the yaml config")
	flag.BoolVar(&debug, "debug", false, "enable debug logs")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := web.NewServer(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up server")
	}
	defer server.Close()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Echo,
		// open progress streams end with the server context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("chunk_size", cfg.Upload.ChunkSize.String()).
			Str("max_filesize", cfg.Upload.MaxFilesize.String()).
			Msg("server started at")

		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
}
