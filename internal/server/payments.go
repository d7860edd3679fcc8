package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	obscontext "github.com/smallbiznis/payrelay/internal/observability/context"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
)

const (
	headerGatewaySignature = "X-Razorpay-Signature"
	headerGatewayEventID   = "X-Razorpay-Event-Id"
)

type createOrderRequest struct {
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Receipt        string         `json:"receipt"`
	LinkedRecordID string         `json:"linkedRecordId"`
	Metadata       map[string]any `json:"metadata"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type verifyResponse struct {
	Success      bool   `json:"success"`
	PaymentID    string `json:"paymentId"`
	OrderID      string `json:"orderId,omitempty"`
	VerifiedAt   string `json:"verifiedAt,omitempty"`
	Error        string `json:"error,omitempty"`
	RecordBooked bool   `json:"recordBooked,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.paymentSvc.CreateOrder(c.Request.Context(), tenantFromContext(c), paymentdomain.CreateOrderRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		LinkedRecordID: req.LinkedRecordID,
		Metadata:       req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": orderResponse{
		ID:       order.ExternalOrderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
		Status:   string(order.Status),
	}})
}

func (s *Server) VerifyPayment(c *gin.Context) {
	var req paymentdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.paymentSvc.Verify(c.Request.Context(), tenantFromContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(obscontext.GinKeyPaymentOutcome, string(result.Outcome))

	switch result.Outcome {
	case paymentdomain.OutcomeSuccess:
		c.JSON(http.StatusOK, verifyResponse{
			Success:    true,
			PaymentID:  result.PaymentID,
			OrderID:    result.OrderID,
			VerifiedAt: result.VerifiedAt.UTC().Format(time.RFC3339),
		})
	case paymentdomain.OutcomeTestModeSoftFail:
		c.JSON(http.StatusOK, verifyResponse{
			Success:      false,
			PaymentID:    result.PaymentID,
			Error:        paymentdomain.ErrSignatureInvalid.Error(),
			RecordBooked: true,
			Message:      result.Message,
		})
	default:
		c.JSON(http.StatusBadRequest, verifyResponse{
			Success:   false,
			PaymentID: result.PaymentID,
			Error:     paymentdomain.ErrSignatureInvalid.Error(),
		})
	}
}

func (s *Server) GatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.paymentSvc.HandleGatewayWebhook(
		c.Request.Context(),
		body,
		strings.TrimSpace(c.GetHeader(headerGatewaySignature)),
		strings.TrimSpace(c.GetHeader(headerGatewayEventID)),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obscontext.GinKeyWebhookStatus, string(result.Status))
	c.JSON(http.StatusOK, gin.H{"status": string(result.Status)})
}
