package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/systems-marketplace-payments/internal/api_gateway/middleware"
	"github.com/systems-marketplace-payments/internal/api_gateway/service"
	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// ConnectHandler handles creator payout account onboarding
type ConnectHandler struct {
	connectService service.ConnectService
	logger         *slog.Logger
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(logger *slog.Logger, connectService service.ConnectService) *ConnectHandler {
	return &ConnectHandler{
		connectService: connectService,
		logger:         logger,
	}
}

// Connect creates the caller's payout account, or re-issues its onboarding link
func (h *ConnectHandler) Connect(c *gin.Context) {
	var req ConnectAccountRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Debug("Invalid request body", "error", err)
			RespondBadRequest(c, "Invalid request body")
			return
		}
	}

	result, err := h.connectService.CreateConnectAccount(c.Request.Context(), middleware.GetCallerID(c), req.Email, req.BusinessType)
	if err != nil {
		h.respondError(c, "Failed to connect account", err)
		return
	}

	response := ConnectAccountResponse{
		AccountID:  result.AccountID,
		IsExisting: result.IsExisting,
	}
	if result.Link != nil {
		response.AccountLink = result.Link.URL
		response.ExpiresAt = result.Link.ExpiresAt
	}
	RespondOK(c, response)
}

// GetLink issues a fresh onboarding link
func (h *ConnectHandler) GetLink(c *gin.Context) {
	link, err := h.connectService.GetAccountLink(c.Request.Context(), middleware.GetCallerID(c))
	if err != nil {
		h.respondError(c, "Failed to create account link", err)
		return
	}

	RespondOK(c, AccountLinkResponse{AccountLink: link.URL, ExpiresAt: link.ExpiresAt})
}

// GetStatus refreshes and returns the caller's verification state
func (h *ConnectHandler) GetStatus(c *gin.Context) {
	status, err := h.connectService.CheckAccountStatus(c.Request.Context(), middleware.GetCallerID(c))
	if err != nil {
		h.respondError(c, "Failed to check account status", err)
		return
	}

	if !status.Connected {
		RespondOK(c, AccountStatusResponse{Connected: false})
		return
	}

	account := status.Account
	RespondOK(c, AccountStatusResponse{
		Connected:           true,
		AccountID:           account.AccountID,
		Status:              string(account.Status),
		FullyVerified:       account.IsFullyVerified(),
		ChargesEnabled:      account.ChargesEnabled,
		PayoutsEnabled:      account.PayoutsEnabled,
		DetailsSubmitted:    account.DetailsSubmitted,
		BusinessName:        account.BusinessName,
		CurrentRequirements: account.CurrentRequirements,
		PendingVerification: account.PendingVerification,
	})
}

// Disconnect forgets the caller's payout account
func (h *ConnectHandler) Disconnect(c *gin.Context) {
	if err := h.connectService.Disconnect(c.Request.Context(), middleware.GetCallerID(c)); err != nil {
		h.respondError(c, "Failed to disconnect account", err)
		return
	}

	RespondOK(c, SuccessResponse{Success: true})
}

func (h *ConnectHandler) respondError(c *gin.Context, msg string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(msg, "correlation_id", middleware.GetCorrelationID(c), "error", err)
	}
	RespondServiceError(c, err)
}
