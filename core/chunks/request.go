package chunks

import (
	"chupload/core/api"
	"chupload/pkg/rho"
	"strconv"
	"strings"
)

// Attachment is a chunk file already written to disk by the transport.
// UploadErr is set when the transport failed to receive it completely.
type Attachment struct {
	Path      string
	Size      int64
	UploadErr UploadErrno
}

// Request is the parsed form of one chunk upload. Keys passed in already
// carry the field prefix.
type Request interface {
	FormValue(key string) (string, bool)
	Attachment(key string) (*Attachment, bool)
}

// FormRequest is a map backed Request, handy for tests and non-http callers.
type FormRequest struct {
	Values map[string]string
	Files  map[string]*Attachment
}

func (fr FormRequest) FormValue(key string) (string, bool) {
	v, ok := fr.Values[key]
	return v, ok
}

func (fr FormRequest) Attachment(key string) (*Attachment, bool) {
	a, ok := fr.Files[key]
	return a, ok && a != nil
}

type ChunkMetadata struct {
	Name        string
	Size        int64
	Index       int64
	Fingerprint string
}

type ChunkPayload struct {
	Path string
	Size int64
}

// ValidateRequest extracts the chunk metadata and payload from req. It has
// no side effects.
func ValidateRequest(req Request, prefix string, requireFingerprint bool) (ChunkMetadata, ChunkPayload, error) {
	md := ChunkMetadata{}

	blob, ok := req.Attachment(api.FieldKey(prefix, api.FieldBlob))
	if !ok {
		return md, ChunkPayload{}, NewError(ErrnoNoChunk, "chunk not received", nil)
	}

	required := []string{api.FieldName, api.FieldSize, api.FieldIndex}
	if requireFingerprint {
		required = append(required, api.FieldFingerprint)
	}

	missing := rho.Filter(required, func(field string, _ int) bool {
		_, ok := req.FormValue(api.FieldKey(prefix, field))
		return !ok
	})
	if len(missing) > 0 {
		return md, ChunkPayload{}, NewError(
			ErrnoDataIncomplete,
			"form data not received: "+strings.Join(missing, ","),
			nil,
		)
	}

	if blob.UploadErr != UploadOK {
		return md, ChunkPayload{}, NewError(Errno(blob.UploadErr), "transport upload error", nil)
	}

	field := func(name string) string {
		v, _ := req.FormValue(api.FieldKey(prefix, name))
		return strings.TrimSpace(v)
	}

	size, err := strconv.ParseInt(field(api.FieldSize), 10, 64)
	if err != nil {
		return md, ChunkPayload{}, NewError(ErrnoFilesizeInvalid, "size is not an integer", err)
	}

	index, err := strconv.ParseInt(field(api.FieldIndex), 10, 64)
	if err != nil {
		return md, ChunkPayload{}, NewError(ErrnoIndexInvalid, "index is not an integer", err)
	}

	md.Name = field(api.FieldName)
	md.Size = size
	md.Index = index
	if requireFingerprint {
		md.Fingerprint = field(api.FieldFingerprint)
	}

	return md, ChunkPayload{Path: blob.Path, Size: blob.Size}, nil
}
