package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	jobdomain "github.com/smallbiznis/recurra/internal/job/domain"
)

// executeJob is the queue push callback. The status code is the retry
// contract: 200 means the task drained (success or terminal drop), 400
// means the body can never execute and must not be redelivered, 500 asks
// the queue to redeliver with backoff.
func (s *Server) executeJob(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = s.runner.Execute(c.Request.Context(), body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, jobdomain.ErrUnregisteredJob),
		errors.Is(err, jobdomain.ErrMalformedEnvelope):
		s.log.Warn("rejected job callback", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
