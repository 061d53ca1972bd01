package models

import "time"

// News is a published news article, optionally with an image.
type News struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	ImageURL  *string   `db:"image_url" json:"image_url"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateNewsRequest is the payload for publishing a news article.
type CreateNewsRequest struct {
	Title    string  `json:"title" validate:"required,min=3,max=200"`
	Content  string  `json:"content" validate:"required"`
	ImageURL *string `json:"image_url"`
}

// UpdateNewsRequest is the payload for editing a news article. A nil
// ImageURL keeps the current image.
type UpdateNewsRequest struct {
	Title    string  `json:"title" validate:"required,min=3,max=200"`
	Content  string  `json:"content" validate:"required"`
	ImageURL *string `json:"image_url"`
}

// NewsFilter captures filtering criteria for the paginated news listing.
type NewsFilter struct {
	Search   string
	Page     int
	PageSize int
}
