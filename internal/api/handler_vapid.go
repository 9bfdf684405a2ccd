package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// vapidKeyMaxAge is how long browsers may cache the VAPID public key. The key
// only changes with the daemon configuration.
const vapidKeyMaxAge = "public, max-age=86400"

// GetVAPIDPublicKey handles GET /api/vapid_public_key. Browsers need the key
// to subscribe to pet movement notifications; without configured keys
// notifications are off and the endpoint answers 503.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.Header("Cache-Control", "no-store")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are disabled"})
		return
	}

	c.Header("Cache-Control", vapidKeyMaxAge)
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
