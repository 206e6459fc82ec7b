package routes

import (
	"bufio"
	"bytes"
	"chupload/core/api"
	"chupload/core/chunks"
	"chupload/pkg/blobstore"
	"chupload/pkg/brokers"
	"chupload/web/middlewares"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChunkSize = 1024

type testServer struct {
	uploader *chunks.Uploader
	broker   *brokers.Broker
	spool    *blobstore.LocalFS
	echo     *echo.Echo
}

func setupTestServer(t *testing.T, bodyLimit int64) *testServer {
	root := t.TempDir()

	uploader, err := chunks.New(chunks.Config{
		ChunkSize:   testChunkSize,
		MaxFilesize: 64 * 1024,
		TempDir:     filepath.Join(root, "temp"),
		DestDir:     filepath.Join(root, "dest"),
	})
	require.NoError(t, err)

	spool, err := blobstore.NewLocalFS(filepath.Join(root, "spool"))
	require.NoError(t, err)
	require.NoError(t, blobstore.EnsureDir(spool.Dir()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	broker := brokers.NewSSEBroker("test_progress")
	broker.Start(ctx)

	e := echo.New()
	e.Use(middlewares.RequestLogger(zerolog.Nop()))

	Register(
		e.Group(""),
		&ChunkHandler{Uploader: uploader, Spool: spool, Progress: broker},
		&SSEHandler{Progress: broker, Heartbeat: 50 * time.Millisecond},
		middlewares.BodyLimit(bodyLimit),
	)

	return &testServer{uploader: uploader, broker: broker, spool: spool, echo: e}
}

func chunkForm(t *testing.T, fields map[string]string, blob []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, form.WriteField(api.FieldKey(api.DefaultFieldPrefix, k), v))
	}

	if blob != nil {
		part, err := form.CreateFormFile(api.FieldKey(api.DefaultFieldPrefix, api.FieldBlob), "blob")
		require.NoError(t, err)
		_, err = part.Write(blob)
		require.NoError(t, err)
	}

	require.NoError(t, form.Close())

	return &buf, form.FormDataContentType()
}

type reply struct {
	Errno int              `json:"errno"`
	Data  *api.ChunkResult `json:"data"`
}

func (ts *testServer) post(t *testing.T, fields map[string]string, blob []byte) (int, reply) {
	body, contentType := chunkForm(t, fields, blob)

	req := httptest.NewRequest(http.MethodPost, RouteChunkUpload, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	ts.echo.ServeHTTP(rec, req)

	out := reply{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return rec.Code, out
}

func chunkFields(name string, size, index int) map[string]string {
	return map[string]string{
		api.FieldName:  name,
		api.FieldSize:  strconv.Itoa(size),
		api.FieldIndex: strconv.Itoa(index),
	}
}

func Test_Ping(t *testing.T) {
	ts := setupTestServer(t, 1<<20)

	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RoutePing, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middlewares.RequestIDHeaderKey))
}

func Test_UploadChunk(t *testing.T) {
	t.Run("chunks are merged in order", func(t *testing.T) {
		ts := setupTestServer(t, 1<<20)

		data := bytes.Repeat([]byte("0123456789"), 250)

		for index := 0; index*testChunkSize < len(data); index++ {
			end := min((index+1)*testChunkSize, len(data))

			status, out := ts.post(t, chunkFields("report.txt", len(data), index), data[index*testChunkSize:end])
			require.Equal(t, http.StatusOK, status)
			require.Equal(t, 0, out.Errno)
			require.NotNil(t, out.Data)
			assert.EqualValues(t, index, out.Data.Index)
			assert.Equal(t, end == len(data), out.Data.Done)
		}

		merged, err := os.ReadFile(ts.uploader.DestPath("report.txt"))
		require.NoError(t, err)
		assert.Equal(t, data, merged)

		spooled, err := os.ReadDir(ts.spool.Dir())
		require.NoError(t, err)
		assert.Empty(t, spooled)
	})

	t.Run("missing blob", func(t *testing.T) {
		ts := setupTestServer(t, 1<<20)

		status, out := ts.post(t, chunkFields("a.bin", 10, 0), nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, int(chunks.ErrnoNoChunk), out.Errno)
		assert.Nil(t, out.Data)
	})

	t.Run("not a multipart body", func(t *testing.T) {
		ts := setupTestServer(t, 1<<20)

		req := httptest.NewRequest(http.MethodPost, RouteChunkUpload, strings.NewReader("{}"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		ts.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"errno":512,"data":null}`, rec.Body.String())
	})

	t.Run("constraint errors are forbidden", func(t *testing.T) {
		ts := setupTestServer(t, 1<<20)

		status, out := ts.post(t, chunkFields("a.bin", 10, 3), []byte("0123456789"))
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, int(chunks.ErrnoIndexOversized), out.Errno)
	})

	t.Run("oversized body is an upload error", func(t *testing.T) {
		ts := setupTestServer(t, 512)

		status, out := ts.post(t, chunkFields("a.bin", 1000, 0), bytes.Repeat([]byte("x"), 1000))
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, int(chunks.UploadIniSize), out.Errno)
	})

	t.Run("accepted chunks are published", func(t *testing.T) {
		ts := setupTestServer(t, 1<<20)

		ch, unsub := ts.broker.Subscribe(context.Background(), "tiny.bin")
		defer unsub()

		_, out := ts.post(t, chunkFields("tiny.bin", 4, 0), []byte("tiny"))
		require.Equal(t, 0, out.Errno)

		select {
		case msg := <-ch:
			assert.Equal(t, EventDone, msg.Event)
			assert.JSONEq(t, `{"path":"tiny.bin","index":0,"done":true}`, string(msg.Content))
		case <-time.After(2 * time.Second):
			t.Fatal("no progress message")
		}
	})
}

func Test_StreamProgress(t *testing.T) {
	ts := setupTestServer(t, 1<<20)

	srv := httptest.NewServer(ts.echo)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/upload/events/live.bin", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	// the subscription is registered before the headers are flushed
	ts.broker.SendMessage(ctx, brokers.Message{Topic: "live.bin", Event: EventChunk, Content: []byte(`{"index":0}`)})

	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var got []string

	timeout := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "data:") {
				got = append(got, line)
			}
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}

	assert.Equal(t, []string{"event: chunk", `data: {"index":0}`}, got)
}
