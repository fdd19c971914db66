package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pastorcare/backend/internal/service/availability"
)

// ListAvailability returns the active windows of a pastor.
// GET /api/v1/availability/:pastor_id
func (h *Handler) ListAvailability(c *gin.Context) {
	if _, ok := mustActor(c); !ok {
		return
	}
	windows, err := h.avail.ListActive(c.Request.Context(), c.Param("pastor_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]AvailabilityResponse, 0, len(windows))
	for _, w := range windows {
		out = append(out, toAvailabilityResponse(w))
	}
	OK(c, gin.H{"list": out})
}

// CreateAvailability
// POST /api/v1/availability/:pastor_id
func (h *Handler) CreateAvailability(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithDetails(c, http.StatusBadRequest, 40001, "invalid request body", err.Error())
		return
	}
	if req.DayOfWeek == nil || req.StartTime == nil || req.EndTime == nil {
		BadRequest(c, "day_of_week, start_time and end_time are required")
		return
	}
	w, err := h.avail.Create(c.Request.Context(), actor, availability.CreateInput{
		PastorID:  c.Param("pastor_id"),
		DayOfWeek: *req.DayOfWeek,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, toAvailabilityResponse(w))
}

// UpdateAvailability
// PUT /api/v1/availability/:pastor_id/:id
func (h *Handler) UpdateAvailability(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AvailabilityPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithDetails(c, http.StatusBadRequest, 40001, "invalid request body", err.Error())
		return
	}
	w, err := h.avail.Update(c.Request.Context(), actor, c.Param("pastor_id"), id, availability.UpdateInput{
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  req.IsActive,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, toAvailabilityResponse(w))
}

// DeactivateAvailability
// POST /api/v1/availability/:pastor_id/:id/deactivate
func (h *Handler) DeactivateAvailability(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.avail.Deactivate(c.Request.Context(), actor, c.Param("pastor_id"), id); err != nil {
		h.fail(c, err)
		return
	}
	OK(c, nil)
}

// DeleteAvailability
// DELETE /api/v1/availability/:pastor_id/:id
func (h *Handler) DeleteAvailability(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.avail.Delete(c.Request.Context(), actor, c.Param("pastor_id"), id); err != nil {
		h.fail(c, err)
		return
	}
	OK(c, nil)
}
