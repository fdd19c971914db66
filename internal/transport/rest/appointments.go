package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/booking"
)

// RequestAppointment
// POST /api/v1/appointments
func (h *Handler) RequestAppointment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithDetails(c, http.StatusBadRequest, 40001, "invalid request body", err.Error())
		return
	}
	if req.RequestedDate == nil || req.RequestedTime == nil {
		BadRequest(c, "requested_date and requested_time are required")
		return
	}

	appt, err := h.booking.RequestAppointment(c.Request.Context(), actor, booking.RequestInput{
		PastorID:       req.PastorID,
		Subject:        req.Subject,
		Notes:          req.Notes,
		Date:           *req.RequestedDate,
		Time:           *req.RequestedTime,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	Created(c, toAppointmentResponse(appt))
}

// ListAppointments
// GET /api/v1/appointments
func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var q AppointmentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		ErrorWithDetails(c, http.StatusBadRequest, 40001, "invalid query", err.Error())
		return
	}
	filter := booking.ListFilter{PastorID: q.PastorID, MemberID: q.MemberID}
	if q.Status != "" {
		st, ok := domain.ParseStatus(q.Status)
		if !ok {
			BadRequest(c, "unknown status "+q.Status)
			return
		}
		filter.Status = st
	}

	appts, err := h.booking.ListAppointments(c.Request.Context(), actor, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"list": toAppointmentList(appts)})
}

// GetAppointment
// GET /api/v1/appointments/:id
func (h *Handler) GetAppointment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	appt, err := h.booking.GetAppointment(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, toAppointmentResponse(appt))
}

// AppointmentHistory
// GET /api/v1/appointments/:id/history
func (h *Handler) AppointmentHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	changes, err := h.booking.History(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, gin.H{"list": toStatusChangeList(changes)})
}

// PatchAppointment confirms, cancels or edits an appointment.
// PATCH /api/v1/appointments/:id
func (h *Handler) PatchAppointment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AppointmentPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorWithDetails(c, http.StatusBadRequest, 40001, "invalid request body", err.Error())
		return
	}

	editing := req.Subject != nil || req.Notes != nil
	ctx := c.Request.Context()
	var (
		appt domain.Appointment
		err  error
	)
	switch {
	case strings.TrimSpace(req.Status) != "" && editing:
		BadRequest(c, "status changes and field edits must be separate requests")
		return
	case editing:
		appt, err = h.booking.UpdateRequest(ctx, actor, id, booking.UpdateRequestInput{Subject: req.Subject, Notes: req.Notes})
	default:
		st, ok := domain.ParseStatus(req.Status)
		switch {
		case !ok:
			BadRequest(c, "status must be CONFIRMED or CANCELLED")
			return
		case st == domain.StatusConfirmed:
			appt, err = h.booking.Confirm(ctx, actor, id, req.Location, req.MessageToMember)
		case st == domain.StatusCancelled:
			appt, err = h.booking.Cancel(ctx, actor, id, req.Reason)
		default:
			BadRequest(c, "status must be CONFIRMED or CANCELLED")
			return
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, toAppointmentResponse(appt))
}

// DeleteAppointment
// DELETE /api/v1/appointments/:id
func (h *Handler) DeleteAppointment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.booking.Delete(c.Request.Context(), actor, id); err != nil {
		h.fail(c, err)
		return
	}
	OK(c, nil)
}
