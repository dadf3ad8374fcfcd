package handlers

import (
	"net/http"

	"reviewhub/internal/response"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Health reports ok when the database answers a ping.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Fail(c, utils.NewInternalError("database unreachable", err))
			return
		}
		response.OK(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
