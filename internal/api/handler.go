package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"sureflap-monitor/internal/store"
	"sureflap-monitor/internal/surehub"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	client    *surehub.Client
	webpush   *webpush.Options
	positions *cache.Cache
}

// NewHandler creates a new API handler. Live positions are cached for
// positionTTL.
func NewHandler(s store.Store, client *surehub.Client, webpushOptions *webpush.Options, positionTTL time.Duration) *Handler {
	return &Handler{
		store:     s,
		client:    client,
		webpush:   webpushOptions,
		positions: cache.New(positionTTL, 2*positionTTL),
	}
}

// upstreamError writes the response for a failed cloud API call.
func upstreamError(c *gin.Context, err error) {
	var authErr *surehub.AuthError
	var callErr *surehub.CallError
	switch {
	case errors.As(err, &authErr):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "cloud login failed"})
	case errors.As(err, &callErr):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": callErr.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "cloud request failed"})
	}
}
