package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"inkpost/internal/model"
)

// BlogRepository defines the interface for interacting with blog data
type BlogRepository interface {
	// ListBlogs returns a page of blogs, newest first
	ListBlogs(ctx context.Context, limit, offset int) ([]model.Blog, error)
	GetBlogByID(ctx context.Context, id int64) (*model.Blog, error)
	CreateBlog(ctx context.Context, b *model.Blog) error
	// UpdateBlog applies a partial update and returns nil, nil if the blog does not exist
	UpdateBlog(ctx context.Context, id int64, u model.BlogUpdate) (*model.Blog, error)
	// DeleteBlog reports whether a row was removed
	DeleteBlog(ctx context.Context, id int64) (bool, error)
}

type blogRepo struct {
	db *sql.DB
}

// NewBlogRepo creates a new BlogRepository
func NewBlogRepo(db *sql.DB) BlogRepository {
	return &blogRepo{db: db}
}

func (r *blogRepo) ListBlogs(ctx context.Context, limit, offset int) ([]model.Blog, error) {
	query := `
		SELECT id, title, content, user_id, created_at, updated_at
		FROM blogs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := []model.Blog{}
	for rows.Next() {
		var b model.Blog
		if err := rows.Scan(&b.ID, &b.Title, &b.Content, &b.UserID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blogs, nil
}

func (r *blogRepo) GetBlogByID(ctx context.Context, id int64) (*model.Blog, error) {
	query := `
		SELECT id, title, content, user_id, created_at, updated_at
		FROM blogs
		WHERE id = $1
	`
	var b model.Blog
	err := r.db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Title, &b.Content, &b.UserID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *blogRepo) CreateBlog(ctx context.Context, b *model.Blog) error {
	query := `
		INSERT INTO blogs (title, content, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, title, content, user_id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query, b.Title, b.Content, b.UserID).
		Scan(&b.ID, &b.Title, &b.Content, &b.UserID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *blogRepo) UpdateBlog(ctx context.Context, id int64, u model.BlogUpdate) (*model.Blog, error) {
	var sets []string
	var args []any
	if u.Title != nil {
		args = append(args, *u.Title)
		sets = append(sets, "title = $"+strconv.Itoa(len(args)))
	}
	if u.Content != nil {
		args = append(args, *u.Content)
		sets = append(sets, "content = $"+strconv.Itoa(len(args)))
	}
	if len(sets) == 0 {
		return r.GetBlogByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := "UPDATE blogs SET " + strings.Join(sets, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING id, title, content, user_id, created_at, updated_at"

	var b model.Blog
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.Title, &b.Content, &b.UserID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *blogRepo) DeleteBlog(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
