package handler

import (
	"net/http"

	"github.com/antichaos/antichaos/internal/api/models"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

func (h *Handler) GetSpheres(c *gin.Context) {
	spheres, err := h.engine.GetSpheres(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSpheres(spheres))
}

func (h *Handler) RateSpheres(c *gin.Context) {
	var req models.SphereRatingsCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	inputs := lo.Map(req.Ratings, func(r models.SphereRatingInput, _ int) engine.RatingInput {
		return engine.RatingInput{Sphere: r.Sphere, Rating: r.Rating}
	})
	ratings, err := h.engine.RateSpheres(c.Request.Context(), CurrentUser(c).ID, inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSphereRatings(ratings))
}

func (h *Handler) LatestRatings(c *gin.Context) {
	ratings, err := h.engine.GetLatestRatings(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToSphereRatings(ratings))
}

func (h *Handler) GetFocusSpheres(c *gin.Context) {
	focus, err := h.engine.GetFocusSpheres(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToFocusSpheres(focus))
}

func (h *Handler) UpdateFocusSpheres(c *gin.Context) {
	var req models.FocusSpheresUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	focus, err := h.engine.UpdateFocusSpheres(c.Request.Context(), CurrentUser(c).ID, req.Spheres)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ToFocusSpheres(focus))
}
