package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"inkpost/internal/api/v1/dto"
	"inkpost/internal/api/v1/response"
	"inkpost/internal/middleware"
	"inkpost/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	defaultBlogOffset = 0
	defaultBlogLimit  = 10
)

// BlogHandler handles blog endpoints. Reads are public, writes need a user.
type BlogHandler struct {
	blogService service.BlogService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewBlogHandler(blogService service.BlogService, validate *validator.Validate, logger zerolog.Logger) *BlogHandler {
	return &BlogHandler{
		blogService: blogService,
		validate:    validate,
		logger:      logger.With().Str("handler", "BlogHandler").Logger(),
	}
}

// RegisterRoutes mounts blog routes
func (h *BlogHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	create := authMw(http.HandlerFunc(h.createBlog))
	update := authMw(http.HandlerFunc(h.updateBlog))
	remove := authMw(http.HandlerFunc(h.deleteBlog))

	mux.HandleFunc("/blogs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.listBlogs(w, r)
		case http.MethodPost:
			create.ServeHTTP(w, r)
		default:
			response.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
	mux.HandleFunc("/blogs/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.getBlog(w, r)
		case http.MethodPut, http.MethodPatch:
			update.ServeHTTP(w, r)
		case http.MethodDelete:
			remove.ServeHTTP(w, r)
		default:
			response.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})
}

// listBlogs godoc
// @Summary List blogs, newest first
// @Tags blogs
// @Produce json
// @Param offset query int false "Offset (>= 0)"
// @Param limit query int false "Limit (1-10)"
// @Success 200 {array} dto.BlogResponseDTO
// @Failure 400 {object} response.ErrorBody
// @Router /blogs [get]
func (h *BlogHandler) listBlogs(w http.ResponseWriter, r *http.Request) {
	q := dto.BlogListQuery{Offset: defaultBlogOffset, Limit: defaultBlogLimit}
	var errs []string
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "Offset must be a positive number")
		}
		q.Offset = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, "Limit must be between 1 and 10")
		}
		q.Limit = n
	}
	if len(errs) == 0 {
		errs = h.validationErrors(&q)
	}
	if len(errs) > 0 {
		response.ValidationError(w, "invalid query parameters", errs)
		return
	}

	blogs, err := h.blogService.List(r.Context(), q.Offset, q.Limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list blogs")
		response.Error(w, http.StatusInternalServerError, "failed to list blogs")
		return
	}
	response.JSON(w, http.StatusOK, dto.NewBlogListResponse(blogs))
}

func (h *BlogHandler) getBlog(w http.ResponseWriter, r *http.Request) {
	id, ok := blogID(w, r)
	if !ok {
		return
	}
	b, err := h.blogService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get blog")
		return
	}
	response.JSON(w, http.StatusOK, dto.NewBlogResponse(b))
}

// createBlog godoc
// @Summary Create a blog
// @Tags blogs
// @Accept json
// @Produce json
// @Param blog body dto.BlogCreateDTO true "Blog"
// @Success 201 {object} dto.BlogResponseDTO
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /blogs [post]
func (h *BlogHandler) createBlog(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req dto.BlogCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	req.Normalize()
	if errs := h.validationErrors(&req); len(errs) > 0 {
		response.ValidationError(w, "validation failed", errs)
		return
	}

	b, err := h.blogService.Create(r.Context(), user.ID, req.Title, req.Content)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to create blog")
		return
	}
	response.JSON(w, http.StatusCreated, dto.NewBlogResponse(b))
}

func (h *BlogHandler) updateBlog(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := blogID(w, r)
	if !ok {
		return
	}
	var req dto.BlogUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	req.Normalize()
	if errs := h.validationErrors(&req); len(errs) > 0 {
		response.ValidationError(w, "validation failed", errs)
		return
	}

	b, err := h.blogService.Update(r.Context(), user.ID, id, req.ToModel())
	if err != nil {
		h.writeServiceError(w, err, "failed to update blog")
		return
	}
	response.JSON(w, http.StatusOK, dto.NewBlogResponse(b))
}

func (h *BlogHandler) deleteBlog(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, ok := blogID(w, r)
	if !ok {
		return
	}
	if err := h.blogService.Delete(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, err, "failed to delete blog")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// blogID parses the id path segment, writing a 400 when it is not a positive
// integer.
func blogID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/blogs/"), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		response.Error(w, http.StatusBadRequest, "Blog ID must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *BlogHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrBlogNotFound):
		response.Error(w, http.StatusNotFound, "blog not found")
	case errors.Is(err, service.ErrForbidden):
		response.Error(w, http.StatusForbidden, "you can only modify your own blogs")
	default:
		h.logger.Error().Err(err).Msg(msg)
		response.Error(w, http.StatusInternalServerError, msg)
	}
}

func (h *BlogHandler) validationErrors(v any) []string {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "Offset":
		return "Offset must be a positive number"
	case "Limit":
		return "Limit must be between 1 and 10"
	case "Title":
		if fe.Tag() == "required" {
			return "Title is required"
		}
		return "Title cannot be empty if provided"
	case "Content":
		if fe.Tag() == "required" {
			return "Content is required"
		}
		return "Content cannot be empty if provided"
	}
	return fe.Error()
}
