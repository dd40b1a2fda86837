package httpgin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/service"
)

// userAction adapts a user directory mutation with no request body.
func userAction(fn func(ctx context.Context, caller, target domain.Identity) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := parseIdentityParam(c, "id")
		if !ok {
			return
		}
		if err := fn(c.Request.Context(), caller(c), target); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// userBodyAction is userAction for mutations that take a JSON body.
func userBodyAction[Req any](fn func(ctx context.Context, caller, target domain.Identity, req Req) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := parseIdentityParam(c, "id")
		if !ok {
			return
		}
		var req Req
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := fn(c.Request.Context(), caller(c), target, req); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Verify a user
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Success  204
// @Failure  403  {object}  ErrorResponse
// @Router   /admin/users/{id}/verification [post]
func handleVerify(svcs *service.Services) gin.HandlerFunc {
	return userAction(svcs.Users.Verify)
}

// @Summary  Revoke a user's verification
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Success  204
// @Router   /admin/users/{id}/verification [delete]
func handleRevokeVerification(svcs *service.Services) gin.HandlerFunc {
	return userAction(svcs.Users.RevokeVerification)
}

// @Summary  Ban a user
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Param    req  body  BanRequest  true  "payload"
// @Success  204
// @Router   /admin/users/{id}/ban [post]
func handleBan(svcs *service.Services) gin.HandlerFunc {
	return userBodyAction(func(ctx context.Context, caller, target domain.Identity, req BanRequest) error {
		return svcs.Users.Ban(ctx, caller, target, req.Reason)
	})
}

// @Summary  Lift a ban
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Success  204
// @Router   /admin/users/{id}/ban [delete]
func handleUnban(svcs *service.Services) gin.HandlerFunc {
	return userAction(svcs.Users.Unban)
}

// @Summary  Override the per-event purchase limit
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Param    req  body  PurchaseLimitRequest  true  "payload"
// @Success  204
// @Router   /admin/users/{id}/purchase-limit [put]
func handleSetPurchaseLimit(svcs *service.Services) gin.HandlerFunc {
	return userBodyAction(func(ctx context.Context, caller, target domain.Identity, req PurchaseLimitRequest) error {
		return svcs.Users.SetPurchaseLimit(ctx, caller, target, req.Limit)
	})
}

// @Summary  Register a user's region
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Param    req  body  RegionRequest  true  "payload"
// @Success  204
// @Router   /admin/users/{id}/region [put]
func handleSetRegion(svcs *service.Services) gin.HandlerFunc {
	return userBodyAction(func(ctx context.Context, caller, target domain.Identity, req RegionRequest) error {
		return svcs.Users.SetRegion(ctx, caller, target, req.Region)
	})
}

// @Summary  Grant the organizer role
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Success  204
// @Router   /admin/users/{id}/organizer [post]
func handleGrantOrganizer(svcs *service.Services) gin.HandlerFunc {
	return userAction(svcs.Users.GrantOrganizer)
}

// @Summary  Revoke the organizer role
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Success  204
// @Router   /admin/users/{id}/organizer [delete]
func handleRevokeOrganizer(svcs *service.Services) gin.HandlerFunc {
	return userAction(svcs.Users.RevokeOrganizer)
}

// @Summary  Lower a user's reputation
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Address"
// @Param    req  body  PenaltyRequest  true  "payload"
// @Success  204
// @Router   /admin/users/{id}/penalties [post]
func handlePenalize(svcs *service.Services) gin.HandlerFunc {
	return userBodyAction(func(ctx context.Context, caller, target domain.Identity, req PenaltyRequest) error {
		return svcs.Users.Penalize(ctx, caller, target, req.Points, req.Reason)
	})
}

// @Summary  System state and treasury balance
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Success  200  {object}  emergency.Status
// @Router   /admin/status [get]
func handleStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svcs.Emergency.Status(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// @Summary  Pause all mutating operations
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Success  204
// @Router   /admin/pause [post]
func handlePause(svcs *service.Services) gin.HandlerFunc {
	return systemAction(svcs.Emergency.Pause)
}

// @Summary  Resume operations
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Success  204
// @Router   /admin/unpause [post]
func handleUnpause(svcs *service.Services) gin.HandlerFunc {
	return systemAction(svcs.Emergency.Unpause)
}

func systemAction(fn func(ctx context.Context, caller domain.Identity) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context(), caller(c)); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Set the fee recipient
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    req  body  FeeRecipientRequest  true  "payload"
// @Success  204
// @Router   /admin/fee-recipient [put]
func handleSetFeeRecipient(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FeeRecipientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		recipient, ok := parseIdentity(c, "recipient", req.Recipient)
		if !ok {
			return
		}
		if err := svcs.Emergency.SetFeeRecipient(c.Request.Context(), caller(c), recipient); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Set the refund fee rate
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    req  body  RefundFeeRequest  true  "payload"
// @Success  204
// @Router   /admin/refund-fee [put]
func handleSetRefundFee(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundFeeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Emergency.SetRefundFeeRate(c.Request.Context(), caller(c), req.Bps); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Withdraw from the treasury
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    req  body  WithdrawRequest  true  "payload"
// @Success  204
// @Router   /admin/withdrawals [post]
func handleWithdraw(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		to, ok := parseIdentity(c, "to", req.To)
		if !ok {
			return
		}
		if err := svcs.Emergency.Withdraw(c.Request.Context(), caller(c), to, req.Amount); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Drain the treasury while paused
// @Param    X-Identity  header  string  true  "Administrator address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    req  body  EmergencyWithdrawRequest  true  "payload"
// @Success  200  {object}  EmergencyWithdrawResponse
// @Failure  409  {object}  ErrorResponse  "not paused"
// @Router   /admin/emergency-withdrawal [post]
func handleEmergencyWithdraw(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmergencyWithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		to, ok := parseIdentity(c, "to", req.To)
		if !ok {
			return
		}
		amount, err := svcs.Emergency.EmergencyWithdraw(c.Request.Context(), caller(c), to)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, EmergencyWithdrawResponse{Amount: amount})
	}
}
