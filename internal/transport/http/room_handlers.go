package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pianoroom/internal/core"
	"github.com/vovakirdan/pianoroom/internal/proto"
)

// RoomHandlers provides HTTP handlers for room discovery endpoints.
type RoomHandlers struct {
	rooms *core.RoomRegistry
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(rooms *core.RoomRegistry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms: rooms,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomsResponse is the body of the room listing.
type RoomsResponse struct {
	Rooms []proto.Channel `json:"rooms"`
}

// ListRooms returns the visible rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	resp := RoomsResponse{Rooms: []proto.Channel{}}
	for info := range h.rooms.ListVisible() {
		resp.Rooms = append(resp.Rooms, channelFromRoom(info))
	}
	c.JSON(http.StatusOK, resp)
}

// GetRoom returns a single visible room.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")
	room, ok := h.rooms.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	info := room.Info()
	if !info.Settings.Visible || info.Count == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, channelFromRoom(info))
}
