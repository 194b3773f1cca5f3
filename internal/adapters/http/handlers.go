package http

import (
	"net/http"

	"github.com/dkeye/relay/internal/adapters/rtc"
	"github.com/dkeye/relay/internal/app/orch"
	"github.com/dkeye/relay/internal/domain"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	orch *orch.Orchestrator
	ice  []rtc.ICEServer
}

type RoomResponse struct {
	ID      domain.RoomID     `json:"id"`
	Members []domain.ClientID `json:"members"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Registry.Rooms()})
}

func (h *handlers) getRoom(c *gin.Context) {
	id := domain.RoomID(c.Param("room"))
	members, ok := h.orch.Registry.Members(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomResponse{ID: id, Members: members})
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice})
}
