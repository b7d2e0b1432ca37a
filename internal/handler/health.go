package handler

import (
	"context"
	"net/http"
	"time"

	"fleetdispatch/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health checks Postgres and Redis connectivity and reports the manifest
// queue depths. Degraded storage returns 503 so load balancers can rotate
// the instance out.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		pgStatus := "up"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			pgStatus = "down"
		}

		redisStatus := "up"
		var pending, dead int64
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "down"
		} else {
			pending, _ = rdb.LLen(ctx, worker.QueueManifest).Result()
			dead, _ = worker.DLQLength(ctx, rdb, worker.QueueManifest)
		}

		status := http.StatusOK
		if pgStatus != "up" || redisStatus != "up" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"postgres": pgStatus,
			"redis":    redisStatus,
			"queues": gin.H{
				"manifest_pending": pending,
				"manifest_dead":    dead,
			},
		})
	}
}
