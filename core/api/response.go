package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Response is the body of every chunk upload reply. Data is null on failure.
type Response struct {
	Errno      int `json:"errno"`
	Data       any `json:"data"`
	HttpStatus int `json:"-"`
}

// ChunkResult is the success payload. Done is only true on the chunk that
// completed the merge.
type ChunkResult struct {
	Path  string `json:"path"`
	Index int64  `json:"index"`
	Done  bool   `json:"done"`
}

// StatusCoder is implemented by errors that know their errno and the http
// status they map to.
type StatusCoder interface {
	error
	Errno() int
	HTTPStatus() int
}

const UnknownErrno = 0x0900

func ParseErrorResponse(err error) Response {
	var coded StatusCoder
	if !errors.As(err, &coded) {
		log.Error().Err(err).Msg("unclassified error")

		return Response{
			Errno:      UnknownErrno,
			HttpStatus: http.StatusInternalServerError,
		}
	}

	return Response{
		Errno:      coded.Errno(),
		HttpStatus: coded.HTTPStatus(),
	}
}

func BuildResponse(err error, data any) Response {
	if err != nil {
		return ParseErrorResponse(err)
	}

	return Response{
		Errno:      0,
		Data:       data,
		HttpStatus: http.StatusOK,
	}
}

func (r Response) Success() bool {
	return r.Errno == 0
}
