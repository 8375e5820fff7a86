package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"intel-review-api/config"
	"intel-review-api/middleware"
	"intel-review-api/services"

	"github.com/gin-gonic/gin"
)

var (
	retentionOnce sync.Once
	retentionSvc  *services.RetentionService
)

// retentionService hands out one shared instance: the purge single-flight
// guard lives on the service, so every request must see the same one.
func retentionService() *services.RetentionService {
	retentionOnce.Do(func() {
		retentionSvc = services.NewRetentionService(config.DB,
			services.NewAuditRecorder(config.DB),
			services.DefaultRetentionPolicy())
	})
	return retentionSvc
}

type extendRequest struct {
	Days int `json:"days" binding:"required"`
}

// ExtendPostRetention resets one post's retention window, counted from now.
func ExtendPostRetention(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil || postID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	post, svcErr := retentionService().ExtendOne(postID, req.Days, middleware.ActorFromContext(c))
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.Set(middleware.CtxAuditRecorded, true)

	c.JSON(http.StatusOK, gin.H{"post": post})
}

type bulkExtendRequest struct {
	IDs  []int `json:"ids" binding:"required"`
	Days int   `json:"days" binding:"required"`
}

// BulkExtendRetention extends many posts at once. Each id succeeds or fails
// on its own; the response reports both sets.
func BulkExtendRetention(c *gin.Context) {
	var req bulkExtendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := retentionService().ExtendBulk(c.Request.Context(), req.IDs, req.Days,
		middleware.ActorFromContext(c))
	if err != nil {
		// A cancelled batch still reports how far it got.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.Set(middleware.CtxAuditRecorded, true)
			c.JSON(http.StatusRequestTimeout, gin.H{
				"error":        "bulk extension cancelled before completion",
				"extended_ids": result.ExtendedIDs,
				"failed_ids":   result.FailedIDs,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.Set(middleware.CtxAuditRecorded, true)

	c.JSON(http.StatusOK, gin.H{
		"extended_ids": result.ExtendedIDs,
		"failed_ids":   result.FailedIDs,
	})
}

// GetRetentionBuckets groups live posts by urgency for the retention view.
func GetRetentionBuckets(c *gin.Context) {
	buckets, err := retentionService().Buckets(time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

// PurgeExpired runs one purge sweep over expired posts, expired reports and
// the audit trail's own retention window. A sweep already in flight yields
// a 409.
func PurgeExpired(c *gin.Context) {
	result, err := retentionService().Purge(c.Request.Context(), time.Now(),
		middleware.ActorFromContext(c))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.Set(middleware.CtxAuditRecorded, true)
			c.JSON(http.StatusRequestTimeout, gin.H{
				"error":       "purge sweep cancelled before completion",
				"purgedCount": result.PurgedCount,
				"failedIds":   result.FailedIDs,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.Set(middleware.CtxAuditRecorded, true)

	c.JSON(http.StatusOK, gin.H{
		"purgedCount": result.PurgedCount,
		"failedIds":   result.FailedIDs,
	})
}
