package handler

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/Kosench/go-link-shortener/internal/errors"
	"github.com/Kosench/go-link-shortener/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkService interface {
	CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.LinkResponse, error)
	ListLinks(ctx context.Context) ([]*model.LinkResponse, error)
	GetLink(ctx context.Context, code string) (*model.LinkResponse, error)
	DeleteLink(ctx context.Context, code string) error
	Resolve(ctx context.Context, code string) (string, error)
}

const notFoundPage = "404 page not found: this short link does not exist"

type LinkHandler struct {
	links LinkService
	log   *zap.Logger
}

func NewLinkHandler(links LinkService, log *zap.Logger) *LinkHandler {
	return &LinkHandler{
		links: links,
		log:   log.Named("link_handler"),
	}
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format",
		})
		return
	}

	response, err := h.links.CreateLink(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.links.ListLinks(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}

func (h *LinkHandler) GetLink(c *gin.Context) {
	response, err := h.links.GetLink(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.links.DeleteLink(c.Request.Context(), c.Param("code")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Redirect отвечает браузеру, поэтому ошибки отдаются текстом, а не JSON
func (h *LinkHandler) Redirect(c *gin.Context) {
	target, err := h.links.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, apperrors.ErrLinkNotFound) {
			c.String(http.StatusNotFound, notFoundPage)
			return
		}
		h.log.Error("redirect failed", zap.String("short_code", c.Param("code")), zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	// HTTP 302 - Found
	c.Redirect(http.StatusFound, target)
}

// handleError обрабатывает ошибки и возвращает соответствующие HTTP коды
func (h *LinkHandler) handleError(c *gin.Context, err error) {
	if validationErr := apperrors.GetValidationError(err); validationErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validationErr.Message,
			"field":   validationErr.Field,
		})
		return
	}

	if errors.Is(err, apperrors.ErrShortCodeExists) {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "short_code_taken",
			"message": "Short code is already in use",
		})
		return
	}

	if errors.Is(err, apperrors.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "link_not_found",
			"message": "Link not found",
		})
		return
	}

	// Причину наружу не отдаем, только в лог
	h.log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	if businessErr := apperrors.GetBusinessError(err); businessErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
			"code":    businessErr.Code,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
	})
}
