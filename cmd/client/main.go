package main

import (
	"chupload/core/api"
	"chupload/core/client"
	"chupload/pkg/config"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const (
	EndpointFlag    = "endpoint"
	PrefixFlag      = "prefix"
	ChunkSizeFlag   = "chunk-size"
	FingerprintFlag = "fingerprint"
	RetriesFlag     = "retries"
	NameFlag        = "name"
)

var (
	ErrNoFiles       = errors.New("no files to push")
	ErrNameAmbiguous = errors.New("--name only works with a single file")
)

// checkPushArgs refuses argument sets that would make uploads overwrite
// each other on the server.
func checkPushArgs(files []string, name string) error {
	if len(files) == 0 {
		return ErrNoFiles
	}

	if name != "" && len(files) > 1 {
		return ErrNameAmbiguous
	}

	return nil
}

type PushRunner struct{}

func (s *PushRunner) Run(c *cli.Context) error {
	files := c.Args().Slice()
	if err := checkPushArgs(files, c.String(NameFlag)); err != nil {
		return err
	}

	chunkSize, err := config.ParseByteSize(c.String(ChunkSizeFlag))
	if err != nil {
		return err
	}

	if chunkSize < 1 {
		return client.ErrChunkSize
	}

	uploader := client.New(client.Params{
		Endpoint:    c.String(EndpointFlag),
		Prefix:      c.String(PrefixFlag),
		ChunkSize:   int64(chunkSize),
		Fingerprint: c.Bool(FingerprintFlag),
		RetryMax:    c.Int(RetriesFlag),
	})

	for _, path := range files {
		result, err := uploader.Push(c.Context, path, c.String(NameFlag))
		if err != nil {
			return err
		}

		log.Info().Str("file", path).Str("stored_as", result.Path).Msg("upload complete")
	}

	return nil
}

func main() {
	pushCmd := &PushRunner{}

	app := &cli.App{
		Name:  "chupload",
		Usage: "push files to a chunked upload endpoint",
		Commands: []*cli.Command{
			{
				Name:      "push",
				Usage:     "upload files chunk by chunk",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     EndpointFlag,
						Aliases:  []string{"e"},
						Required: true,
					},
					&cli.StringFlag{
						Name:  PrefixFlag,
						Value: api.DefaultFieldPrefix,
					},
					&cli.StringFlag{
						Name:  ChunkSizeFlag,
						Value: "100KiB",
						Usage: "must match the server chunk size",
					},
					&cli.BoolFlag{
						Name: FingerprintFlag,
					},
					&cli.IntFlag{
						Name:  RetriesFlag,
						Value: 3,
					},
					&cli.StringFlag{
						Name:  NameFlag,
						Usage: "name to store the file under, defaults to its base name",
					},
				},
				Action: pushCmd.Run,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
