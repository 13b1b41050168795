package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/antichaos/antichaos/internal/api/models"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/antichaos/antichaos/internal/identity"
	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// UserKey is the gin context key of the resolved *database.User.
const UserKey = "user"

type Handler struct {
	engine *engine.Engine
}

func New(eng *engine.Engine) *Handler {
	return &Handler{
		engine: eng,
	}
}

// CurrentUser returns the user resolved by the identity middleware.
func CurrentUser(c *gin.Context) *database.User {
	return c.MustGet(UserKey).(*database.User)
}

func parseUintParam(param string) (uint, error) {
	id, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.ToUint(id)
}

// parseDays reads an optional non negative "days" query parameter.
func parseDays(c *gin.Context) (int, bool) {
	value := c.Query("days")
	if value == "" {
		return 0, true
	}
	days, err := parseUintParam(value)
	if err != nil {
		return 0, false
	}
	n, err := safecast.ToInt(days)
	return n, err == nil
}

// respondError maps engine and storage errors to status codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, identity.ErrInvalidInitData):
		status = http.StatusUnauthorized
	case errors.Is(err, engine.ErrAdminOnly), errors.Is(err, engine.ErrGuestOnly):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrFocusChangeLocked):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidFocusSet),
		errors.Is(err, engine.ErrInvalidRating),
		errors.Is(err, engine.ErrInvalidDate),
		errors.Is(err, engine.ErrInvalidNotificationTime),
		errors.Is(err, engine.ErrInvalidQuestion),
		errors.Is(err, engine.ErrInvalidSphere):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the current user.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, models.ToUser(CurrentUser(c)))
}

// IsAdmin reports whether the current user is an administrator.
func (h *Handler) IsAdmin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"is_admin": h.engine.IsAdmin(CurrentUser(c))})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.engine.UpdateProfile(c.Request.Context(), CurrentUser(c).ID, engine.ProfileInput{
		Name:      req.Name,
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToUser(user))
}

func (h *Handler) Export(c *gin.Context) {
	export, err := h.engine.Export(c.Request.Context(), CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToExport(export))
}

func (h *Handler) OnboardingStatus(c *gin.Context) {
	done, err := h.engine.OnboardingCompleted(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"onboarding_completed": done})
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	if err := h.engine.DeleteAccount(c.Request.Context(), CurrentUser(c).ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (h *Handler) GenerateTestData(c *gin.Context) {
	if err := h.engine.GenerateGuestTestData(c.Request.Context(), CurrentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test data generated successfully"})
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.engine.GetSettings(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSettings(settings))
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	settings, err := h.engine.UpdateSettings(c.Request.Context(), CurrentUser(c), models.ToSettingsUpdate(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSettings(settings))
}

func (h *Handler) Progress(c *gin.Context) {
	days, ok := parseDays(c)
	if !ok {
		badRequest(c, "invalid days parameter")
		return
	}
	p, err := h.engine.Progress(c.Request.Context(), CurrentUser(c).ID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToProgress(p))
}

func (h *Handler) WeeklySummary(c *gin.Context) {
	summary, err := h.engine.WeeklySummary(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToWeeklySummary(summary))
}

func (h *Handler) MonthlyReport(c *gin.Context) {
	report, err := h.engine.MonthlyReport(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToMonthlyReport(report))
}
