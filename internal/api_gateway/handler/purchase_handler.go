package handler

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/systems-marketplace-payments/internal/api_gateway/middleware"
	"github.com/systems-marketplace-payments/internal/domain/purchase"
	"github.com/systems-marketplace-payments/internal/domain/shared"
	"github.com/systems-marketplace-payments/internal/fees"
	"github.com/systems-marketplace-payments/internal/purchasing/service"
)

// PurchaseHandler handles HTTP requests for system purchases
type PurchaseHandler struct {
	ledger service.LedgerService
	logger *slog.Logger
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(logger *slog.Logger, ledger service.LedgerService) *PurchaseHandler {
	return &PurchaseHandler{
		ledger: ledger,
		logger: logger,
	}
}

// Create starts a purchase for the authenticated buyer and returns the client secret
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", "error", err)
		RespondBadRequest(c, "Missing required fields")
		return
	}

	priceCents, err := fees.ToMinorUnits(req.Price)
	if err != nil {
		h.logger.Debug("Price out of range", "price", req.Price.String(), "error", err)
		RespondBadRequest(c, "Price is too large")
		return
	}

	result, err := h.ledger.CreatePurchase(c.Request.Context(), &service.CreatePurchaseRequest{
		BuyerID:    middleware.GetCallerID(c),
		CreatorID:  req.CreatorID,
		SystemID:   req.SystemID,
		SystemName: req.SystemName,
		PriceCents: priceCents,
	})
	if err != nil {
		h.respondError(c, "Failed to create purchase", err)
		return
	}

	RespondCreated(c, CreatePurchaseResponse{
		ClientSecret: result.ClientSecret,
		PurchaseID:   result.Purchase.ID.String(),
		TotalAmount:  dollars(result.Purchase.TotalAmountCents),
		PlatformFee:  dollars(result.Purchase.PlatformFeeCents),
	})
}

// GetStatus polls the purchase and completes it once the payment has succeeded
func (h *PurchaseHandler) GetStatus(c *gin.Context) {
	id, ok := h.purchaseID(c)
	if !ok {
		return
	}

	status, err := h.ledger.ConfirmPayment(c.Request.Context(), id, middleware.GetCallerID(c))
	if err != nil {
		h.respondError(c, "Failed to get purchase status", err)
		return
	}

	RespondOK(c, PurchaseStatusResponse{
		Status:        string(status.Status),
		PaymentStatus: string(status.PaymentStatus),
	})
}

// Cancel refunds a completed purchase for its buyer
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	id, ok := h.purchaseID(c)
	if !ok {
		return
	}

	if err := h.ledger.CancelPurchase(c.Request.Context(), id, middleware.GetCallerID(c)); err != nil {
		h.respondError(c, "Failed to cancel purchase", err)
		return
	}

	RespondOK(c, SuccessResponse{Success: true})
}

// GetByID returns the purchase to its buyer or creator
func (h *PurchaseHandler) GetByID(c *gin.Context) {
	id, ok := h.purchaseID(c)
	if !ok {
		return
	}

	record, err := h.ledger.GetPurchase(c.Request.Context(), id, middleware.GetCallerID(c))
	if err != nil {
		h.respondError(c, "Failed to get purchase", err)
		return
	}

	RespondOK(c, mapPurchaseToResponse(record))
}

// GetAccess reports whether the caller holds a grant for the system
func (h *PurchaseHandler) GetAccess(c *gin.Context) {
	systemID := c.Param("systemId")

	ok, err := h.ledger.HasAccess(c.Request.Context(), middleware.GetCallerID(c), systemID)
	if err != nil {
		h.respondError(c, "Failed to check access", err)
		return
	}

	RespondOK(c, AccessResponse{SystemID: systemID, HasAccess: ok})
}

func (h *PurchaseHandler) purchaseID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Debug("Invalid purchase ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid purchase ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *PurchaseHandler) respondError(c *gin.Context, msg string, err error) {
	if shared.KindOf(err) == shared.KindInternal {
		h.logger.Error(msg, "correlation_id", middleware.GetCorrelationID(c), "error", err)
	} else {
		h.logger.Info(msg, "correlation_id", middleware.GetCorrelationID(c), "reason", shared.MessageOf(err))
	}
	RespondServiceError(c, err)
}

func dollars(cents int64) json.Number {
	return json.Number(fees.FromMinorUnits(cents).StringFixed(2))
}

// mapPurchaseToResponse maps a purchase record to its response DTO
func mapPurchaseToResponse(record *purchase.Record) PurchaseResponse {
	response := PurchaseResponse{
		ID:                 record.ID.String(),
		BuyerID:            record.BuyerID,
		CreatorID:          record.CreatorID,
		SystemID:           record.SystemID,
		SystemName:         record.SystemName,
		Price:              dollars(record.PriceCents),
		PlatformFee:        dollars(record.PlatformFeeCents),
		TotalAmount:        dollars(record.TotalAmountCents),
		CreatorPayout:      dollars(record.CreatorPayoutCents),
		PlatformFeePercent: record.PlatformFeePercent,
		Currency:           record.Currency,
		Status:             string(record.Status),
		PaymentIntentID:    record.PaymentIntentID,
		RefundID:           record.RefundID,
		CreatedAt:          record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          record.UpdatedAt.Format(time.RFC3339),
	}

	if record.PaidAt != nil {
		response.PaidAt = record.PaidAt.Format(time.RFC3339)
	}
	if record.RefundedAt != nil {
		response.RefundedAt = record.RefundedAt.Format(time.RFC3339)
	}

	return response
}
