package database

import "time"

func Now() time.Time {
	return time.Now().UTC()
}

type Timestamp struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func NewTimestamp() Timestamp {
	now := Now()
	return Timestamp{CreatedAt: now, UpdatedAt: now}
}
