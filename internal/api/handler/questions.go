package handler

import (
	"net/http"

	"github.com/antichaos/antichaos/internal/api/models"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/gin-gonic/gin"
)

func (h *Handler) respondQuestion(c *gin.Context, q *database.Question, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No question available"})
		return
	}
	c.JSON(http.StatusOK, models.ToQuestion(q))
}

// DailyQuestion serves the question of the day. The optional "sphere" query
// parameter prefers one of the focus spheres.
func (h *Handler) DailyQuestion(c *gin.Context) {
	q, err := h.engine.DailyQuestion(c.Request.Context(), CurrentUser(c).ID, c.Query("sphere"))
	h.respondQuestion(c, q, err)
}

// SimpleQuestion serves a question from any sphere.
func (h *Handler) SimpleQuestion(c *gin.Context) {
	q, err := h.engine.SimpleQuestion(c.Request.Context(), CurrentUser(c).ID)
	h.respondQuestion(c, q, err)
}

func (h *Handler) GetQuestion(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid question id")
		return
	}
	q, err := h.engine.GetQuestion(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToQuestion(q))
}

// SpheresForRating lists the focus spheres whose questions are all answered.
func (h *Handler) SpheresForRating(c *gin.Context) {
	spheres, err := h.engine.SpheresToRate(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, spheres)
}

func (h *Handler) CanChangeFocus(c *gin.Context) {
	ok, err := h.engine.CanChangeFocusSpheres(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"can_change": ok})
}

func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req models.AnswerCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	answer, err := h.engine.SubmitAnswer(c.Request.Context(), CurrentUser(c).ID, req.QuestionID, req.Answer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToAnswer(answer))
}

func (h *Handler) ListAnswers(c *gin.Context) {
	days, ok := parseDays(c)
	if !ok {
		badRequest(c, "invalid days parameter")
		return
	}
	answers, err := h.engine.ListAnswers(c.Request.Context(), CurrentUser(c).ID, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToAnswers(answers))
}
