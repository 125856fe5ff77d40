package models

import "time"

// SchoolClass identifies one grade group, e.g. "9-A".
type SchoolClass struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
