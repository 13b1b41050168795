package handler

import (
	"net/http"

	"github.com/antichaos/antichaos/internal/api/models"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/antichaos/antichaos/internal/scheduler"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type AdminHandler struct {
	engine *engine.Engine
}

func NewAdmin(eng *engine.Engine) *AdminHandler {
	return &AdminHandler{
		engine: eng,
	}
}

// ListQuestions returns the catalog. "active_only=true" hides inactive questions.
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	questions, err := h.engine.ListQuestions(c.Request.Context(), c.Query("active_only") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToAdminQuestions(questions))
}

func (h *AdminHandler) CreateQuestion(c *gin.Context) {
	var req models.QuestionCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	q := &database.Question{
		Sphere:   req.Sphere,
		Text:     req.Text,
		Type:     database.QuestionType(req.Type),
		IsActive: lo.FromPtrOr(req.IsActive, true),
	}
	if err := h.engine.CreateQuestion(c.Request.Context(), q); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToAdminQuestion(q))
}

func (h *AdminHandler) UpdateQuestion(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid question id")
		return
	}
	var req models.QuestionUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	q, err := h.engine.UpdateQuestion(c.Request.Context(), id, models.ToQuestionUpdate(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToAdminQuestion(q))
}

func (h *AdminHandler) DeleteQuestion(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid question id")
		return
	}
	if err := h.engine.DeleteQuestion(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

func (h *AdminHandler) CreateSphere(c *gin.Context) {
	var req models.SphereCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	sphere := &database.Sphere{Key: req.Key, Name: req.Name, Color: req.Color}
	if err := h.engine.CreateSphere(c.Request.Context(), sphere); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSphere(*sphere))
}

func (h *AdminHandler) UpdateSphere(c *gin.Context) {
	var req models.SphereUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	sphere, err := h.engine.UpdateSphere(c.Request.Context(), c.Param("key"), database.SphereUpdate{Name: req.Name, Color: req.Color})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSphere(*sphere))
}

func (h *AdminHandler) DeleteSphere(c *gin.Context) {
	if err := h.engine.DeleteSphere(c.Request.Context(), c.Param("key")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sphere deleted successfully"})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SystemInfo returns process and database volume statistics.
func (h *AdminHandler) SystemInfo(c *gin.Context) {
	info, err := h.engine.SystemInfo(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSystemInfo(info))
}

// DueUsers previews who would be reminded. "at" takes an HH:MM time of today.
func (h *AdminHandler) DueUsers(c *gin.Context) {
	due, err := h.engine.DueUsersAt(c.Request.Context(), c.Query("at"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToDueUsers(due))
}

// GetSchedulerJobs returns information about all scheduled jobs.
func (h *AdminHandler) GetSchedulerJobs(c *gin.Context) {
	jobs := h.engine.GetScheduler().GetJobs()
	c.JSON(http.StatusOK, lo.MapValues(jobs, func(j scheduler.JobInfo, _ string) models.Job { return models.ToJob(j) }))
}

// RunSchedulerJob triggers a job outside of its schedule.
func (h *AdminHandler) RunSchedulerJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.GetScheduler().RunJobNow(id); err != nil {
		log.Warn("Failed to run job", "id", id, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job triggered successfully"})
}
