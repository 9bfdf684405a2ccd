package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"sureflap-monitor/config"
	"sureflap-monitor/internal/mw"
	"sureflap-monitor/internal/store"
	"sureflap-monitor/internal/surehub"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, client *surehub.Client, webpushOptions *webpush.Options, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger())

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	handler := NewHandler(s, client, webpushOptions, ttl)

	perSec := cfg.RateLimitPerSec
	if perSec <= 0 {
		perSec = 10
	}
	rateLimiter := mw.RateLimiter(rate.Limit(perSec), 5, mw.ClientIP(cfg.RequestIPHeader))

	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/api/health", handler.GetHealth)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/pets", caching, handler.GetPets)
		api.GET("/pets/:pet_id/position", handler.GetPetPosition)
		api.GET("/events", caching, handler.GetEvents)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
