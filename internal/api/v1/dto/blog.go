package dto

import (
	"strings"
	"time"

	"inkpost/internal/model"
)

// BlogListQuery holds the pagination parameters of GET /blogs.
type BlogListQuery struct {
	Offset int `validate:"min=0"`
	Limit  int `validate:"min=1,max=10"`
}

// BlogCreateDTO is used for incoming blog creation requests
type BlogCreateDTO struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (d *BlogCreateDTO) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
}

// BlogUpdateDTO is used for partial updates; omitted fields are unchanged.
type BlogUpdateDTO struct {
	Title   *string `json:"title,omitempty" validate:"omitnil,min=1"`
	Content *string `json:"content,omitempty" validate:"omitnil,min=1"`
}

func (d *BlogUpdateDTO) Normalize() {
	for _, f := range []*string{d.Title, d.Content} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (d BlogUpdateDTO) ToModel() model.BlogUpdate {
	return model.BlogUpdate{Title: d.Title, Content: d.Content}
}

// BlogResponseDTO is returned in API responses for blogs
type BlogResponseDTO struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewBlogResponse(b *model.Blog) BlogResponseDTO {
	return BlogResponseDTO{
		ID:        b.ID,
		Title:     b.Title,
		Content:   b.Content,
		UserID:    b.UserID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func NewBlogListResponse(blogs []model.Blog) []BlogResponseDTO {
	out := make([]BlogResponseDTO, 0, len(blogs))
	for i := range blogs {
		out = append(out, NewBlogResponse(&blogs[i]))
	}
	return out
}
