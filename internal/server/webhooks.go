package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	dunningdomain "github.com/smallbiznis/recurra/internal/dunning/domain"
)

const merchantKeyHeader = "X-Merchant-Key"

func merchantKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(merchantKeyHeader)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + merchantKeyHeader + " header"})
		return "", false
	}
	return key, true
}

type billingAttemptFailurePayload struct {
	ContractID        string `json:"contractId" binding:"required"`
	BillingCycleIndex int    `json:"billingCycleIndex"`
	ErrorCode         string `json:"errorCode" binding:"required"`
}

// billingAttemptFailure records the failure in a tracker and hands the
// retry decision to the job pipeline. The tracker is opened here, before
// the enqueue, so a dropped enqueue still leaves evidence of the failure.
func (s *Server) billingAttemptFailure(c *gin.Context) {
	key, ok := merchantKey(c)
	if !ok {
		return
	}
	var payload billingAttemptFailurePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notice := dunningdomain.FailureNotice{
		MerchantKey:       key,
		ContractID:        payload.ContractID,
		BillingCycleIndex: payload.BillingCycleIndex,
		FailureReasonCode: payload.ErrorCode,
	}
	if _, _, err := s.dunning.Open(c.Request.Context(), notice); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var err error
	if dunningdomain.IsInventoryFailure(payload.ErrorCode) {
		err = s.enqueuer.EnqueueInventoryRetry(c.Request.Context(), notice)
	} else {
		err = s.enqueuer.EnqueueDunningRetry(c.Request.Context(), notice)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type billingAttemptSuccessPayload struct {
	ContractID string `json:"contractId" binding:"required"`
}

func (s *Server) billingAttemptSuccess(c *gin.Context) {
	key, ok := merchantKey(c)
	if !ok {
		return
	}
	var payload billingAttemptSuccessPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, err := s.dunning.Resolve(c.Request.Context(), key, payload.ContractID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "resolved": resolved})
}

func (s *Server) appUninstalled(c *gin.Context) {
	key, ok := merchantKey(c)
	if !ok {
		return
	}
	if err := s.schedule.Deactivate(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.log.Info("billing schedule deactivated on uninstall", zap.String("merchant_key", key))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// shopUpdate re-syncs the schedule asynchronously; timezone changes only
// matter at the next hourly evaluation.
func (s *Server) shopUpdate(c *gin.Context) {
	key, ok := merchantKey(c)
	if !ok {
		return
	}
	if err := s.enqueuer.EnqueueScheduleSync(c.Request.Context(), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
