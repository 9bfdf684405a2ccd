package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const maxEventLimit = 500

// EventResponse is a stored timeline entry.
type EventResponse struct {
	ID          string          `json:"id"`
	Type        int             `json:"type"`
	HouseholdID int64           `json:"household_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	PetIDs      []int64         `json:"pet_ids"`
	Entry       json.RawMessage `json:"entry"`
}

// GetEvents handles the GET /api/events request. Optional query parameters:
// pet_id limits the result to one pet, limit caps the number of events.
func (h *Handler) GetEvents(c *gin.Context) {
	var petID int64
	if raw := c.Query("pet_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid pet_id"})
			return
		}
		petID = id
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.store.RecentEvents(c.Request.Context(), petID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve events"})
		return
	}

	responses := make([]EventResponse, 0, len(events))
	for _, e := range events {
		petIDs := make([]int64, len(e.Pets))
		for i, p := range e.Pets {
			petIDs[i] = p.PetID
		}
		entry := json.RawMessage(e.Payload)
		if !json.Valid(entry) {
			entry = json.RawMessage("null")
		}
		responses = append(responses, EventResponse{
			ID:          e.ID,
			Type:        e.Type,
			HouseholdID: e.HouseholdID,
			OccurredAt:  e.OccurredAt,
			PetIDs:      petIDs,
			Entry:       entry,
		})
	}
	c.JSON(http.StatusOK, responses)
}
