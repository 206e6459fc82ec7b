package api

// Form fields of a chunk upload request. Every field is sent under a prefix
// so it does not collide with other fields of the same form.
const (
	DefaultFieldPrefix = "__chupload_"

	FieldName        = "name"
	FieldSize        = "size"
	FieldIndex       = "index"
	FieldBlob        = "blob"
	FieldFingerprint = "fingerprint"
)

func FieldKey(prefix, field string) string {
	return prefix + field
}
