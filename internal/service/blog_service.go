package service

import (
	"context"

	"inkpost/internal/cache"
	"inkpost/internal/model"
	"inkpost/internal/repository"

	"github.com/rs/zerolog"
)

type BlogService interface {
	List(ctx context.Context, offset, limit int) ([]model.Blog, error)
	Get(ctx context.Context, id int64) (*model.Blog, error)
	Create(ctx context.Context, userID, title, content string) (*model.Blog, error)
	// Update applies a partial update. Only the author may update a blog.
	Update(ctx context.Context, userID string, id int64, u model.BlogUpdate) (*model.Blog, error)
	// Delete removes a blog. Only the author may delete it.
	Delete(ctx context.Context, userID string, id int64) error
}

type blogService struct {
	repo   repository.BlogRepository
	cache  cache.BlogListCache
	logger zerolog.Logger
}

// NewBlogService creates a BlogService. Every write invalidates listCache.
func NewBlogService(repo repository.BlogRepository, listCache cache.BlogListCache, logger zerolog.Logger) BlogService {
	if listCache == nil {
		listCache = cache.Noop{}
	}
	return &blogService{
		repo:   repo,
		cache:  listCache,
		logger: logger.With().Str("service", "BlogService").Logger(),
	}
}

func (s *blogService) List(ctx context.Context, offset, limit int) ([]model.Blog, error) {
	// Cache failures degrade to a database read.
	gen, err := s.cache.Generation(ctx)
	cacheOK := err == nil
	if err != nil {
		s.logger.Warn().Err(err).Msg("Blog cache unavailable")
	}
	if cacheOK {
		blogs, hit, err := s.cache.Get(ctx, gen, offset, limit)
		if err != nil {
			s.logger.Warn().Err(err).Int("offset", offset).Int("limit", limit).Msg("Failed to read blog page from cache")
		} else if hit {
			return blogs, nil
		}
	}

	blogs, err := s.repo.ListBlogs(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if cacheOK {
		if err := s.cache.Set(ctx, gen, offset, limit, blogs); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to cache blog page")
		}
	}
	return blogs, nil
}

func (s *blogService) Get(ctx context.Context, id int64) (*model.Blog, error) {
	b, err := s.repo.GetBlogByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBlogNotFound
	}
	return b, nil
}

func (s *blogService) Create(ctx context.Context, userID, title, content string) (*model.Blog, error) {
	b := &model.Blog{Title: title, Content: content, UserID: userID}
	if err := s.repo.CreateBlog(ctx, b); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create blog")
		return nil, err
	}
	s.invalidate(ctx)
	return b, nil
}

func (s *blogService) Update(ctx context.Context, userID string, id int64, u model.BlogUpdate) (*model.Blog, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	b, err := s.repo.UpdateBlog(ctx, id, u)
	if err != nil {
		s.logger.Error().Err(err).Int64("blog_id", id).Msg("Failed to update blog")
		return nil, err
	}
	if b == nil {
		return nil, ErrBlogNotFound
	}
	s.invalidate(ctx)
	return b, nil
}

func (s *blogService) Delete(ctx context.Context, userID string, id int64) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	removed, err := s.repo.DeleteBlog(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("blog_id", id).Msg("Failed to delete blog")
		return err
	}
	if !removed {
		return ErrBlogNotFound
	}
	s.invalidate(ctx)
	return nil
}

func (s *blogService) owned(ctx context.Context, userID string, id int64) (*model.Blog, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *blogService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to invalidate blog list cache")
	}
}
