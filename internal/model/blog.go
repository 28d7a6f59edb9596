package model

import "time"

// Blog is a single blog post.
type Blog struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BlogUpdate carries the optional fields of a partial blog update.
type BlogUpdate struct {
	Title   *string
	Content *string
}
