package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	Logger "github.com/Luismorlan/zsxqintel/utils/log"
)

// RequestLogger logs every request through the service logger instead of
// gin's default stdout writer, so requests show up next to pipeline logs.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := Logger.Log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request served")
	}
}
