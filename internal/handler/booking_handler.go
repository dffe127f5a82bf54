package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/roombook-api/internal/dto"
	"github.com/noah-isme/roombook-api/internal/models"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
	"github.com/noah-isme/roombook-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, req dto.CreateBookingRequest, ownerID, ownerName string) (*models.Booking, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	Cancel(ctx context.Context, id, ownerID string) (*models.Booking, error)
	Delete(ctx context.Context, id, ownerID string) error
	Swap(ctx context.Context, id string, req dto.SwapBookingRequest, ownerID string) (*models.Booking, error)
}

type scheduleService interface {
	Expand(ctx context.Context, req dto.BulkScheduleRequest, ownerID, ownerName string) (*dto.BulkScheduleResult, error)
}

// BookingHandler exposes the booking engine to the web layer.
type BookingHandler struct {
	bookings  bookingService
	schedules scheduleService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(bookings bookingService, schedules scheduleService) *BookingHandler {
	return &BookingHandler{bookings: bookings, schedules: schedules}
}

// Create godoc
// @Summary Create a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	ownerID, ownerName := ownerFromContext(c)
	if ownerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	booking, err := h.bookings.Create(c.Request.Context(), req, ownerID, ownerName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param room query string false "Room number"
// @Param building query int false "Building number"
// @Param date query string false "Booking date (YYYY-MM-DD)"
// @Param status query string false "Booking status"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.BookingFilter{
		RoomNumber: c.Query("room"),
		OwnerID:    c.Query("owner"),
		Status:     models.BookingStatus(c.Query("status")),
	}
	if raw := c.Query("building"); raw != "" {
		building, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid building number"))
			return
		}
		filter.BuildingNumber = building
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date"))
			return
		}
		filter.Date = &date
	}
	if raw := c.Query("page"); raw != "" {
		filter.Page, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("page_size"); raw != "" {
		filter.PageSize, _ = strconv.Atoi(raw)
	}

	bookings, pagination, err := h.bookings.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Cancel godoc
// @Summary Cancel a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	ownerID, _ := ownerFromContext(c)
	if ownerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	booking, err := h.bookings.Cancel(c.Request.Context(), c.Param("id"), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Delete godoc
// @Summary Delete a booking
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Success 204
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	ownerID, _ := ownerFromContext(c)
	if ownerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.bookings.Delete(c.Request.Context(), c.Param("id"), ownerID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Swap godoc
// @Summary Move a booking to a different room
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.SwapBookingRequest true "Swap payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/swap [post]
func (h *BookingHandler) Swap(c *gin.Context) {
	ownerID, _ := ownerFromContext(c)
	if ownerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SwapBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid swap payload"))
		return
	}
	booking, err := h.bookings.Swap(c.Request.Context(), c.Param("id"), req, ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Bulk godoc
// @Summary Expand a recurrence rule into bookings
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.BulkScheduleRequest true "Recurrence rule"
// @Success 201 {object} response.Envelope
// @Router /bookings/bulk [post]
func (h *BookingHandler) Bulk(c *gin.Context) {
	ownerID, ownerName := ownerFromContext(c)
	if ownerID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk schedule payload"))
		return
	}
	result, err := h.schedules.Expand(c.Request.Context(), req, ownerID, ownerName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}
