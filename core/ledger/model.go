package ledger

import (
	"chupload/core/database"
	"chupload/pkg/blobstore"
)

const (
	StatusCompleted = "completed"
	StatusArchived  = "archived"
	StatusFailed    = "failed"
)

// Upload is one finished upload, written when its merge succeeded.
type Upload struct {
	ID         string  `db:"id" json:"id"`
	Basename   string  `db:"basename" json:"basename"`
	DestPath   string  `db:"dest_path" json:"destPath"`
	FileSize   int64   `db:"file_size" json:"fileSize"`
	NChunks    int64   `db:"chunks" json:"chunks"`
	Status     string  `db:"status" json:"status"`
	ArchiveURL *string `db:"archive_url" json:"archiveUrl"`

	database.Timestamp
}

func NewUpload(basename, destPath string, size, chunkSize int64) (*Upload, error) {
	id, err := database.NewID()
	if err != nil {
		return nil, err
	}

	return &Upload{
		ID:        id,
		Basename:  basename,
		DestPath:  destPath,
		FileSize:  size,
		NChunks:   blobstore.NumChunks(size, chunkSize),
		Status:    StatusCompleted,
		Timestamp: database.NewTimestamp(),
	}, nil
}
