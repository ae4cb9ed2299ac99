package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"safeguard/backend/internal/logger"
	"safeguard/backend/internal/models"
	"safeguard/backend/internal/safeguarding"
	"safeguard/backend/internal/storage"
)

// Moderator is the safeguarding service surface exposed over HTTP.
type Moderator interface {
	Moderate(ctx context.Context, req safeguarding.ModerationRequest) (*models.ModerationResult, error)
	GetUserRiskHistory(ctx context.Context, userID string) (*models.UserRiskProfile, error)
	ResolveAlert(ctx context.Context, alertID, staffID string) error
	EscalateAlert(ctx context.Context, alertID, staffID string) (*safeguarding.EscalationReport, error)
	ListReviewQueue(ctx context.Context, status models.QueueStatus, limit int) ([]models.ReviewQueueEntry, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Moderator Moderator
	Health    Pinger
	JWTSecret []byte
	Logger    *zap.Logger
}

func NewHandler(m Moderator, health Pinger, jwtSecret string, log *zap.Logger) *Handler {
	return &Handler{Moderator: m, Health: health, JWTSecret: []byte(jwtSecret), Logger: logger.OrNop(log)}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.Use(RequestID())
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/moderate", h.Moderate)

	staff := api.Group("/staff", h.StaffAuth())
	staff.GET("/users/:id/risk", h.GetUserRisk)
	staff.GET("/queue", h.ListQueue)
	staff.POST("/alerts/:id/resolve", h.ResolveAlert)
	staff.POST("/alerts/:id/escalate", h.EscalateAlert)
}

type moderateRequest struct {
	Text     string         `json:"text"`
	UserID   string         `json:"user_id"`
	Context  string         `json:"context"`
	Metadata map[string]any `json:"metadata"`
	Language string         `json:"language"`
}

// moderateResponse is all the submitting user may learn about the verdict.
type moderateResponse struct {
	Approved    bool     `json:"approved"`
	Blocked     bool     `json:"blocked"`
	Suggestions []string `json:"suggestions"`
}

// Moderate grades one submission for the platform.
func (h *Handler) Moderate(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.Moderator.Moderate(c.Request.Context(), safeguarding.ModerationRequest{
		Text:     req.Text,
		UserID:   req.UserID,
		Context:  req.Context,
		Metadata: req.Metadata,
		Language: req.Language,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	suggestions := result.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, moderateResponse{
		Approved:    result.Approved,
		Blocked:     result.Blocked,
		Suggestions: suggestions,
	})
}

func (h *Handler) GetUserRisk(c *gin.Context) {
	profile, err := h.Moderator.GetUserRiskHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) ListQueue(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = v
	}

	entries, err := h.Moderator.ListReviewQueue(c.Request.Context(), models.QueueStatus(c.Query("status")), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	if err := h.Moderator.ResolveAlert(c.Request.Context(), c.Param("id"), staffID(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.AlertStatusResolved})
}

func (h *Handler) EscalateAlert(c *gin.Context) {
	report, err := h.Moderator.EscalateAlert(c.Request.Context(), c.Param("id"), staffID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     models.AlertStatusEscalated,
		"notified":   report.Stored(),
		"recipients": len(report.Recipients),
		"incident":   report.Incident,
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request.Context()); err != nil {
			logger.FromContext(c.Request.Context(), h.Logger).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

const requestIDHeader = "X-Request-ID"

// RequestID tags the request context with the caller's X-Request-ID, or a new
// one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// writeError maps service errors to responses without leaking internals.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, safeguarding.ErrEmptyText), errors.Is(err, safeguarding.ErrMissingUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrAlertNotFound), errors.Is(err, storage.ErrQueueEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, safeguarding.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, safeguarding.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromContext(c.Request.Context(), h.Logger).Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
