package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/tix-engine/internal/service"
)

// @Summary  Get event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		// ETag + Cache-Control 60s
		writeJSONWithCache(c, http.StatusOK, e, "public, max-age=60", true)
	}
}

// @Summary  List event tiers with availability
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200  {array}  domain.Tier
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id}/tiers [get]
func handleListTiers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		tiers, err := svcs.Query.ListTiers(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, nonNil(tiers), "public, max-age=5", true)
	}
}

// @Summary  Get tier availability
// @Param    id  path  string  true  "Tier ID (uuid)"
// @Success  200  {object}  domain.Availability
// @Failure  404  {object}  ErrorResponse
// @Router   /tiers/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		tierID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		a, err := svcs.Query.TierAvailability(c.Request.Context(), tierID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, a, "public, max-age=5", true)
	}
}

// @Summary  Create event
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} domain.Event
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}
		e, err := svcs.Admin.CreateEvent(c.Request.Context(), req.Title, starts, ends)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	}
}

// @Summary  Add a tier to an event
// @Param    id  path  string  true  "Event ID (uuid)"
// @Param    req body  CreateTierRequest true "payload"
// @Success  201 {object} domain.Tier
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "tier conflict"
// @Router   /admin/events/{id}/tiers [post]
func handleCreateTier(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CreateTierRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		t, err := svcs.Admin.CreateTier(c.Request.Context(), eventID, req.Name, req.Price, req.Capacity)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}
