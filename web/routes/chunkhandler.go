package routes

import (
	"chupload/core/api"
	"chupload/core/chunks"
	"chupload/pkg/blobstore"
	"chupload/pkg/brokers"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	RouteChunkUpload = "/upload"

	EventChunk = "chunk"
	EventDone  = "done"
)

type ChunkHandler struct {
	Uploader *chunks.Uploader
	Spool    *blobstore.LocalFS
	// Progress is optional. When set, every accepted chunk is published
	// under its basename.
	Progress *brokers.Broker
}

func (handler *ChunkHandler) UploadChunk(c echo.Context) error {
	ctx := c.Request().Context()
	logger := zerolog.Ctx(ctx)

	form, err := c.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		logger.Error().Err(err).Msg("failed to parse form request")

		resp := api.BuildResponse(transportError(err), nil)
		return c.JSON(resp.HttpStatus, resp)
	}

	if form != nil {
		defer form.RemoveAll()
	}

	req := newFormAdapter(form, handler.Spool.Dir())
	defer req.cleanup(logger)

	resp := handler.Uploader.Upload(ctx, req)

	if result, ok := resp.Data.(*api.ChunkResult); ok && handler.Progress != nil {
		handler.publish(c, result)
	}

	return c.JSON(resp.HttpStatus, resp)
}

func (handler *ChunkHandler) publish(c echo.Context, result *api.ChunkResult) {
	content, err := json.Marshal(result)
	if err != nil {
		return
	}

	event := EventChunk
	if result.Done {
		event = EventDone
	}

	handler.Progress.SendMessage(c.Request().Context(), brokers.Message{
		Topic:   result.Path,
		Event:   event,
		Content: content,
	})
}

func transportError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return chunks.NewError(chunks.Errno(chunks.UploadIniSize), "request body too large", err)
	}

	return chunks.NewError(chunks.Errno(chunks.UploadPartial), "request body incomplete", err)
}

// formAdapter exposes a parsed multipart form as a chunks.Request. File
// parts are copied into the spool directory the first time they are asked
// for, so the pipeline can treat them as plain files.
type formAdapter struct {
	form     *multipart.Form
	spoolDir string
	spooled  []string
}

func newFormAdapter(form *multipart.Form, spoolDir string) *formAdapter {
	if form == nil {
		form = &multipart.Form{}
	}

	return &formAdapter{form: form, spoolDir: spoolDir}
}

func (fa *formAdapter) FormValue(key string) (string, bool) {
	values, ok := fa.form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}

	return values[0], true
}

func (fa *formAdapter) Attachment(key string) (*chunks.Attachment, bool) {
	headers, ok := fa.form.File[key]
	if !ok || len(headers) == 0 {
		return nil, false
	}

	return fa.spool(headers[0]), true
}

func (fa *formAdapter) spool(fh *multipart.FileHeader) *chunks.Attachment {
	src, err := fh.Open()
	if err != nil {
		return &chunks.Attachment{UploadErr: chunks.UploadPartial}
	}
	defer src.Close()

	dst, err := os.CreateTemp(fa.spoolDir, "chunk-*")
	if err != nil {
		return &chunks.Attachment{UploadErr: chunks.UploadNoTmpDir}
	}
	defer dst.Close()

	fa.spooled = append(fa.spooled, dst.Name())

	n, err := io.Copy(dst, src)
	if err != nil {
		return &chunks.Attachment{UploadErr: chunks.UploadCantWrite}
	}

	return &chunks.Attachment{Path: dst.Name(), Size: n}
}

// cleanup removes spooled parts the pipeline did not consume.
func (fa *formAdapter) cleanup(logger *zerolog.Logger) {
	for _, path := range fa.spooled {
		if err := blobstore.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to remove spooled chunk")
		}
	}
}
