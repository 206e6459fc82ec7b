package client

import (
	"bytes"
	"chupload/core/api"
	"chupload/core/chunks"
	"chupload/pkg/blobstore"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Params struct {
	Endpoint  string
	Prefix    string
	ChunkSize int64
	// Fingerprint sends the sha256 of every chunk along with it.
	Fingerprint bool
	RetryMax    int
}

// Client pushes local files to a chunk upload endpoint, one request per
// chunk, in order.
type Client struct {
	httpClient *retryablehttp.Client
	params     Params
}

// RemoteError is a chunk the server refused.
type RemoteError struct {
	Index      int64
	StatusCode int
	Errno      chunks.Errno
}

func (re *RemoteError) Error() string {
	return fmt.Sprintf("chunk %d rejected: HTTP %d: %s", re.Index, re.StatusCode, re.Errno)
}

var (
	ErrEmptyFile    = errors.New("cannot upload an empty file")
	ErrNotCompleted = errors.New("server did not confirm the merge")
	ErrChunkSize    = errors.New("chunk size must be at least one byte")
)

func New(params Params) *Client {
	if params.Prefix == "" {
		params.Prefix = api.DefaultFieldPrefix
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = params.RetryMax
	httpClient.RetryWaitMin = 100 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = leveledLogger{log.Logger}
	httpClient.CheckRetry = retryBusy
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{httpClient: httpClient, params: params}
}

// Push uploads the file at path under name. It stops at the first chunk the
// server refuses.
func (c *Client) Push(ctx context.Context, path, name string) (*api.ChunkResult, error) {
	if c.params.ChunkSize < 1 {
		return nil, ErrChunkSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.Size() == 0 {
		return nil, ErrEmptyFile
	}

	if name == "" {
		name = filepath.Base(path)
	}

	logger := log.With().Str("name", name).Int64("size", info.Size()).Logger()
	logger.Info().Int64("chunks", blobstore.NumChunks(info.Size(), c.params.ChunkSize)).Msg("uploading")

	var last *api.ChunkResult

	err = blobstore.ReadFileInChunks(ctx, path, c.params.ChunkSize, func(_ context.Context, chunk blobstore.ChunkedFile) error {
		result, err := c.sendChunk(ctx, name, info.Size(), chunk)
		if err != nil {
			return err
		}

		logger.Debug().Int64("index", chunk.ChunkID).Msg("chunk accepted")
		last = result

		return nil
	})
	if err != nil {
		return nil, err
	}

	if last == nil || !last.Done {
		return last, ErrNotCompleted
	}

	return last, nil
}

func (c *Client) sendChunk(ctx context.Context, name string, size int64, chunk blobstore.ChunkedFile) (*api.ChunkResult, error) {
	body, contentType, err := c.encodeChunk(name, size, chunk)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.params.Endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reply := struct {
		Errno int              `json:"errno"`
		Data  *api.ChunkResult `json:"data"`
	}{}

	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("HTTP %d: undecodable reply: %w", resp.StatusCode, err)
	}

	if reply.Errno != 0 || resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{
			Index:      chunk.ChunkID,
			StatusCode: resp.StatusCode,
			Errno:      chunks.Errno(reply.Errno),
		}
	}

	return reply.Data, nil
}

func (c *Client) encodeChunk(name string, size int64, chunk blobstore.ChunkedFile) ([]byte, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	fields := map[string]string{
		api.FieldName:  name,
		api.FieldSize:  strconv.FormatInt(size, 10),
		api.FieldIndex: strconv.FormatInt(chunk.ChunkID, 10),
	}

	if c.params.Fingerprint {
		fields[api.FieldFingerprint] = chunks.SHA256Fingerprint(chunk.Data)
	}

	for field, value := range fields {
		if err := form.WriteField(api.FieldKey(c.params.Prefix, field), value); err != nil {
			return nil, "", err
		}
	}

	part, err := form.CreateFormFile(api.FieldKey(c.params.Prefix, api.FieldBlob), "blob")
	if err != nil {
		return nil, "", err
	}

	if _, err := part.Write(chunk.Data); err != nil {
		return nil, "", err
	}

	if err := form.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), form.FormDataContentType(), nil
}

// retryBusy retries transport failures and chunks refused because another
// request held the lock. Anything else the server rejected may already
// have been written, so sending it again would corrupt the upload.
func retryBusy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	if resp.StatusCode != http.StatusServiceUnavailable {
		return false, nil
	}

	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if readErr != nil {
		return false, nil
	}

	reply := struct {
		Errno int `json:"errno"`
	}{}

	if json.Unmarshal(body, &reply) != nil {
		return false, nil
	}

	return chunks.Errno(reply.Errno) == chunks.ErrnoBusy, nil
}

// leveledLogger routes retryablehttp logs to zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Error().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warn().Fields(keysAndValues).Msg(msg)
}
