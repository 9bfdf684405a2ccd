package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sureflap-monitor/internal/parse"
	"sureflap-monitor/internal/store"
	"sureflap-monitor/internal/surehub"
)

// PetResponse is a stored pet snapshot.
type PetResponse struct {
	ID          int64      `json:"id"`
	HouseholdID int64      `json:"household_id"`
	Name        string     `json:"name"`
	Where       string     `json:"where"`
	Since       *time.Time `json:"since,omitempty"`
	DeviceID    int64      `json:"device_id,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PositionResponse is a pet's live position.
type PositionResponse struct {
	PetID    int64     `json:"pet_id"`
	Where    string    `json:"where"`
	Since    time.Time `json:"since"`
	DeviceID int64     `json:"device_id,omitempty"`
}

func whereName(w int) string {
	switch surehub.Where(w) {
	case surehub.Inside, surehub.Outside:
		return surehub.Where(w).String()
	default:
		return "unknown"
	}
}

// GetPets handles the GET /api/pets request.
func (h *Handler) GetPets(c *gin.Context) {
	pets, err := h.store.ListPets(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve pets"})
		return
	}

	responses := make([]PetResponse, 0, len(pets))
	for _, p := range pets {
		resp := PetResponse{
			ID:          p.ID,
			HouseholdID: p.HouseholdID,
			Name:        p.Name,
			Where:       whereName(p.Where),
			DeviceID:    p.DeviceID,
			UpdatedAt:   p.UpdatedAt,
		}
		if !p.Since.IsZero() {
			since := p.Since
			resp.Since = &since
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

// GetPetPosition handles the GET /api/pets/{pet_id}/position request. The
// position is read from the cloud API.
func (h *Handler) GetPetPosition(c *gin.Context) {
	petID, err := parse.ID(c.Param("pet_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid pet ID"})
		return
	}

	key := strconv.FormatInt(petID, 10)
	if cached, found := h.positions.Get(key); found {
		c.JSON(http.StatusOK, cached.(PositionResponse))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetPet(ctx, petID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "pet not found"})
		} else {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve pet"})
		}
		return
	}

	pet, err := h.client.Pet(ctx, petID)
	if err != nil {
		upstreamError(c, err)
		return
	}
	pos, err := pet.CurrentPosition(ctx)
	if err != nil {
		upstreamError(c, err)
		return
	}

	resp := PositionResponse{
		PetID:    petID,
		Where:    whereName(int(pos.Where)),
		Since:    pos.Since,
		DeviceID: pos.DeviceID,
	}
	h.positions.SetDefault(key, resp)
	c.JSON(http.StatusOK, resp)
}
