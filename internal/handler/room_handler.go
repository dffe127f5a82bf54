package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/roombook-api/internal/dto"
	"github.com/noah-isme/roombook-api/internal/models"
	appErrors "github.com/noah-isme/roombook-api/pkg/errors"
	"github.com/noah-isme/roombook-api/pkg/response"
)

type roomService interface {
	Status(ctx context.Context, roomNumber string, buildingNumber int) (models.RoomStatus, error)
	SetAdminStatus(ctx context.Context, roomNumber string, buildingNumber int, status models.RoomStatus) (models.RoomStatus, error)
}

// RoomHandler exposes room status endpoints.
type RoomHandler struct {
	rooms roomService
}

// NewRoomHandler builds a new handler.
func NewRoomHandler(rooms roomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// Status godoc
// @Summary Get the projected status of a room
// @Tags Rooms
// @Produce json
// @Param building path int true "Building number"
// @Param room path string true "Room number"
// @Success 200 {object} response.Envelope
// @Router /rooms/{building}/{room}/status [get]
func (h *RoomHandler) Status(c *gin.Context) {
	roomNumber, buildingNumber, ok := roomParams(c)
	if !ok {
		return
	}
	status, err := h.rooms.Status(c.Request.Context(), roomNumber, buildingNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RoomStatusResponse{
		RoomNumber:     roomNumber,
		BuildingNumber: buildingNumber,
		Status:         status,
	}, nil)
}

// SetStatus godoc
// @Summary Set the administrative status of a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param building path int true "Building number"
// @Param room path string true "Room number"
// @Param payload body dto.SetRoomStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /rooms/{building}/{room}/status [put]
func (h *RoomHandler) SetStatus(c *gin.Context) {
	roomNumber, buildingNumber, ok := roomParams(c)
	if !ok {
		return
	}
	var req dto.SetRoomStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room status payload"))
		return
	}
	status, err := h.rooms.SetAdminStatus(c.Request.Context(), roomNumber, buildingNumber, models.RoomStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RoomStatusResponse{
		RoomNumber:     roomNumber,
		BuildingNumber: buildingNumber,
		Status:         status,
	}, nil)
}

func roomParams(c *gin.Context) (string, int, bool) {
	roomNumber := c.Param("room")
	building, err := strconv.Atoi(c.Param("building"))
	if err != nil || roomNumber == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid room or building number"))
		return "", 0, false
	}
	return roomNumber, building, true
}
