package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct{}

func (codedErr) Error() string   { return "coded" }
func (codedErr) Errno() int      { return 0x0302 }
func (codedErr) HTTPStatus() int { return http.StatusForbidden }

func Test_BuildResponse(t *testing.T) {
	t.Run("success carries data", func(t *testing.T) {
		resp := BuildResponse(nil, &ChunkResult{Path: "a.bin", Index: 3, Done: true})
		require.True(t, resp.Success())
		require.Equal(t, http.StatusOK, resp.HttpStatus)

		body, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"errno":0,"data":{"path":"a.bin","index":3,"done":true}}`, string(body))
	})

	t.Run("coded error has null data", func(t *testing.T) {
		resp := BuildResponse(codedErr{}, &ChunkResult{})
		require.Equal(t, http.StatusForbidden, resp.HttpStatus)

		body, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"errno":770,"data":null}`, string(body))
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		resp := BuildResponse(errors.New("boom"), nil)
		assert.Equal(t, UnknownErrno, resp.Errno)
		assert.Equal(t, http.StatusInternalServerError, resp.HttpStatus)
	})
}
