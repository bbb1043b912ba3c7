package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rentease/database"
)

func queryPeriod(c *gin.Context) database.AnalyticsPeriod {
	return database.AnalyticsPeriod(c.DefaultQuery("period", string(database.PeriodDaily)))
}

// queryDate parses an optional date query parameter, answering 400 when it
// is malformed.
func queryDate(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, true
	}
	t, err := parseDate(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return time.Time{}, false
	}
	return t, true
}

// PropertyAnalytics returns the stored buckets of a property. Owners see
// their own listings; admins see all.
func (h *Handler) PropertyAnalytics(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}

	p, err := h.svc.Properties.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if p.OwnerID != currentUser(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}

	rows, err := h.svc.Analytics.History(c.Request.Context(), id, queryPeriod(c), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// RollupProperty recomputes one bucket of a property. Admin only.
func (h *Handler) RollupProperty(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	at, ok := queryDate(c, "at")
	if !ok {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	a, err := h.svc.Analytics.Rollup(c.Request.Context(), id, queryPeriod(c), at)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// RollupAll recomputes the bucket for every listed property. Admin only.
func (h *Handler) RollupAll(c *gin.Context) {
	at, ok := queryDate(c, "at")
	if !ok {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	n, err := h.svc.Analytics.RollupAll(c.Request.Context(), queryPeriod(c), at)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": n})
}

// FlushAnalytics writes buffered engagement counters to storage. Admin only.
func (h *Handler) FlushAnalytics(c *gin.Context) {
	n, err := h.svc.Analytics.Flush(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": n})
}
