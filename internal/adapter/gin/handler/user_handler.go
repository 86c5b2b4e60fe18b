package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "user-image-service/internal/domain/user"
	"user-image-service/internal/usecase/user"
	apperrors "user-image-service/pkg/errors"
	"user-image-service/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc        user.UserUsecase
	imagesURL string // URL prefix the image directory is served under
	maxUpload int64  // Maximum request body size in bytes, 0 for no limit
	log       *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.UserUsecase, imagesURL string, maxUpload int64, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:        uc,
		imagesURL: imagesURL,
		maxUpload: maxUpload,
		log:       log,
	}
}

// UserForm represents the multipart form fields for creating or updating a user.
// The image is read from the "image" file field.
type UserForm struct {
	Name  string `form:"name"`
	Email string `form:"email"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	ImagePath *string `json:"image_path,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// ListUsersResponse represents the HTTP response for listing users
type ListUsersResponse struct {
	Users []UserResponse `json:"users"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ListUsers handles GET /v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.uc.ListUsers(ctx)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := ListUsersResponse{Users: make([]UserResponse, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, h.toResponse(&users[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	u, found, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !found {
		h.notFound(c, id)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(u))
}

// CreateUser handles POST /v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	form, image, cleanup, ok := h.bindForm(c)
	if !ok {
		return
	}
	defer cleanup()

	logger.WithContext(c.Request.Context(), h.log).Info("Gin CreateUser request",
		zap.String("name", form.Name), zap.String("email", form.Email))

	u, err := h.uc.CreateUser(c.Request.Context(), user.CreateUserRequest{
		Name:  form.Name,
		Email: form.Email,
		Image: image,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Location", "/v1/users/"+strconv.FormatInt(u.ID, 10))
	c.JSON(http.StatusCreated, h.toResponse(u))
}

// UpdateUser handles PUT /v1/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	form, image, cleanup, ok := h.bindForm(c)
	if !ok {
		return
	}
	defer cleanup()

	logger.WithContext(c.Request.Context(), h.log).Info("Gin UpdateUser request",
		zap.Int64("id", id), zap.String("name", form.Name), zap.String("email", form.Email), zap.Bool("image", image != nil))

	u, found, err := h.uc.UpdateUser(c.Request.Context(), user.UpdateUserRequest{
		ID:    id,
		Name:  form.Name,
		Email: form.Email,
		Image: image,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !found {
		h.notFound(c, id)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(u))
}

// DeleteUser handles DELETE /v1/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	deleted, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: id})
	if err != nil {
		h.handleError(c, err)
		return
	}
	if !deleted {
		h.notFound(c, id)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.log.Warn("Invalid user ID", zap.String("id", idStr), zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "User ID must be a valid number",
		})
		return 0, false
	}
	return id, true
}

// bindForm reads the name and email fields and the optional image file.
// The returned cleanup closes the uploaded file.
func (h *UserHandler) bindForm(c *gin.Context) (UserForm, *domain.Image, func(), bool) {
	noop := func() {}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	var form UserForm
	if err := c.ShouldBind(&form); err != nil {
		h.bindError(c, err)
		return form, nil, noop, false
	}

	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return form, nil, noop, true
	}
	if err != nil {
		h.bindError(c, err)
		return form, nil, noop, false
	}

	image, file, err := openImage(header)
	if err != nil {
		h.bindError(c, err)
		return form, nil, noop, false
	}

	return form, image, func() { _ = file.Close() }, true
}

func openImage(header *multipart.FileHeader) (*domain.Image, multipart.File, error) {
	file, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &domain.Image{
		FileName: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, file, nil
}

func (h *UserHandler) bindError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		h.log.Warn("Request body too large", zap.Int64("limit", h.maxUpload))
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "request_too_large",
			Message: "Request body exceeds " + strconv.FormatInt(h.maxUpload, 10) + " bytes",
		})
		return
	}

	h.log.Warn("Invalid user form", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}

func (h *UserHandler) notFound(c *gin.Context, id int64) {
	logger.WithContext(c.Request.Context(), h.log).Debug("user not found", zap.Int64("id", id))
	h.handleError(c, apperrors.ErrUserNotFound)
}

// handleError converts usecase errors to appropriate HTTP responses
func (h *UserHandler) handleError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	kind := apperrors.KindOf(err)
	log := logger.WithContext(c.Request.Context(), h.log)

	if status >= http.StatusInternalServerError {
		log.Error("Gin request failed", zap.String("path", c.FullPath()), zap.String("kind", kind.String()), zap.Error(err))
		c.JSON(status, ErrorResponse{
			Error:   kind.String(),
			Message: "An internal error occurred",
		})
		return
	}

	log.Warn("Gin request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(status, ErrorResponse{
		Error:   kind.String(),
		Message: err.Error(),
	})
}

func (h *UserHandler) toResponse(u *user.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		ImagePath: u.ImagePath,
	}
	if u.ImagePath != nil {
		resp.ImageURL = path.Join(h.imagesURL, *u.ImagePath)
	}
	return resp
}
