package chunks

import (
	"errors"
	"fmt"
	"net/http"
)

// Errno identifies one outcome of the upload pipeline. The high byte encodes
// the Kind; upload errnos coming from the transport sit below 0x0100.
type Errno int

const (
	// construction
	ErrnoPrefixInvalid       Errno = 0x0101
	ErrnoChunkTooSmall       Errno = 0x0102
	ErrnoChunkTooBig         Errno = 0x0103
	ErrnoMaxFilesizeTooSmall Errno = 0x0104
	ErrnoDirsNotSet          Errno = 0x0105
	ErrnoDirsIdentical       Errno = 0x0106
	ErrnoDirsNotCreated      Errno = 0x0107

	// request
	ErrnoNoChunk        Errno = 0x0200
	ErrnoDataIncomplete Errno = 0x0201

	// constraints
	ErrnoFilesizeInvalid    Errno = 0x0300
	ErrnoIndexUndersized    Errno = 0x0301
	ErrnoFilesizeOversized  Errno = 0x0302
	ErrnoIndexOversized     Errno = 0x0303
	ErrnoIndexInvalid       Errno = 0x0304
	ErrnoFingerprintInvalid Errno = 0x0305
	ErrnoChunkOversized     Errno = 0x0306
	ErrnoMergeUnordered     Errno = 0x0307
	ErrnoPreProcFail        Errno = 0x0308
	ErrnoChunkProcFail      Errno = 0x0309
	ErrnoPostProcFail       Errno = 0x0310

	// filesystem
	ErrnoDeleteFailed Errno = 0x0500
	ErrnoMergeFailed  Errno = 0x0501
	ErrnoWriteFailed  Errno = 0x0502
	ErrnoBusy         Errno = 0x0503
)

// UploadErrno is a transport level failure. The values follow the classic
// multipart upload error codes so clients can tell them apart from pipeline
// errnos.
type UploadErrno int

const (
	UploadOK        UploadErrno = 0
	UploadIniSize   UploadErrno = 1
	UploadFormSize  UploadErrno = 2
	UploadPartial   UploadErrno = 3
	UploadNoFile    UploadErrno = 4
	UploadNoTmpDir  UploadErrno = 6
	UploadCantWrite UploadErrno = 7
	UploadExtension UploadErrno = 8
)

type Kind int

const (
	KindUnknown Kind = iota
	KindInit
	KindRequest
	KindConstraint
	KindUpload
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindRequest:
		return "request"
	case KindConstraint:
		return "constraint"
	case KindUpload:
		return "upload"
	case KindIO:
		return "io"
	}

	return "unknown"
}

func (e Errno) Kind() Kind {
	switch {
	case e > 0 && e < 0x0100:
		return KindUpload
	case e >= 0x0100 && e < 0x0200:
		return KindInit
	case e >= 0x0200 && e < 0x0300:
		return KindRequest
	case e >= 0x0300 && e < 0x0400:
		return KindConstraint
	case e >= 0x0500 && e < 0x0600:
		return KindIO
	}

	return KindUnknown
}

// HTTPStatus maps client-correctable kinds to 403 and environment problems
// to 503.
func (e Errno) HTTPStatus() int {
	switch e.Kind() {
	case KindInit, KindRequest, KindConstraint:
		return http.StatusForbidden
	case KindUpload, KindIO:
		return http.StatusServiceUnavailable
	}

	if e == 0 {
		return http.StatusOK
	}

	return http.StatusInternalServerError
}

func (e Errno) String() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}

	if e.Kind() == KindUpload {
		return fmt.Sprintf("upload_error_%d", int(e))
	}

	return fmt.Sprintf("errno_%#04x", int(e))
}

var errnoNames = map[Errno]string{
	ErrnoPrefixInvalid:       "prefix_invalid",
	ErrnoChunkTooSmall:       "chunk_too_small",
	ErrnoChunkTooBig:         "chunk_too_big",
	ErrnoMaxFilesizeTooSmall: "max_filesize_too_small",
	ErrnoDirsNotSet:          "dirs_not_set",
	ErrnoDirsIdentical:       "dirs_identical",
	ErrnoDirsNotCreated:      "dirs_not_created",
	ErrnoNoChunk:             "no_chunk",
	ErrnoDataIncomplete:      "data_incomplete",
	ErrnoFilesizeInvalid:     "filesize_invalid",
	ErrnoIndexUndersized:     "index_undersized",
	ErrnoFilesizeOversized:   "filesize_oversized",
	ErrnoIndexOversized:      "index_oversized",
	ErrnoIndexInvalid:        "index_invalid",
	ErrnoFingerprintInvalid:  "fingerprint_invalid",
	ErrnoChunkOversized:      "chunk_oversized",
	ErrnoMergeUnordered:      "merge_unordered",
	ErrnoPreProcFail:         "preproc_fail",
	ErrnoChunkProcFail:       "chunkproc_fail",
	ErrnoPostProcFail:        "postproc_fail",
	ErrnoDeleteFailed:        "delete_failed",
	ErrnoMergeFailed:         "merge_failed",
	ErrnoWriteFailed:         "write_failed",
	ErrnoBusy:                "busy",
}

// Error is the error type returned by every stage of the pipeline.
type Error struct {
	Code Errno
	Msg  string
	Err  error
}

func NewError(code Errno, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Msg != "" {
		msg = msg + ": " + e.Msg
	}

	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so callers can compare against the
// sentinel values below.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return other.Code == e.Code
}

func (e *Error) Errno() int {
	return int(e.Code)
}

func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

var (
	ErrNoChunk            = &Error{Code: ErrnoNoChunk}
	ErrDataIncomplete     = &Error{Code: ErrnoDataIncomplete}
	ErrFilesizeInvalid    = &Error{Code: ErrnoFilesizeInvalid}
	ErrIndexUndersized    = &Error{Code: ErrnoIndexUndersized}
	ErrFilesizeOversized  = &Error{Code: ErrnoFilesizeOversized}
	ErrIndexOversized     = &Error{Code: ErrnoIndexOversized}
	ErrIndexInvalid       = &Error{Code: ErrnoIndexInvalid}
	ErrFingerprintInvalid = &Error{Code: ErrnoFingerprintInvalid}
	ErrChunkOversized     = &Error{Code: ErrnoChunkOversized}
	ErrMergeUnordered     = &Error{Code: ErrnoMergeUnordered}
	ErrPreProcFail        = &Error{Code: ErrnoPreProcFail}
	ErrChunkProcFail      = &Error{Code: ErrnoChunkProcFail}
	ErrPostProcFail       = &Error{Code: ErrnoPostProcFail}
	ErrDeleteFailed       = &Error{Code: ErrnoDeleteFailed}
	ErrMergeFailed        = &Error{Code: ErrnoMergeFailed}
	ErrWriteFailed        = &Error{Code: ErrnoWriteFailed}
	ErrBusy               = &Error{Code: ErrnoBusy}
)

// CodeOf extracts the errno of err, or 0 when err is nil or not a pipeline
// error.
func CodeOf(err error) Errno {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return 0
}
