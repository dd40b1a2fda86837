package httpgin

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/fairtix/internal/service"
)

// @Summary  Get ticket with its current holder
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200  {object}  query.TicketView
// @Failure  404  {object}  ErrorResponse
// @Router   /tickets/{id} [get]
func handleGetTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Query.GetTicket(c.Request.Context(), ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// @Summary  Resale history of a ticket
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200  {array}  domain.TransferRecord
// @Router   /tickets/{id}/transfers [get]
func handleTransferHistory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		records, err := svcs.Query.TransferHistory(c.Request.Context(), ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeCachedJSON(c, http.StatusOK, records, "no-cache")
	}
}

// @Summary  Resell a ticket under the price cap
// @Param    X-Identity  header  string  true  "Seller address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Param    req  body  ResellRequest  true  "payload"
// @Success  204
// @Failure  409  {object}  ErrorResponse  "cooldown / cap / transfer limit"
// @Router   /tickets/{id}/resale [post]
func handleResell(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ResellRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		to, ok := parseIdentity(c, "to", req.To)
		if !ok {
			return
		}
		if err := svcs.Tickets.Resell(c.Request.Context(), caller(c), ticketID, to, req.Price, req.Paid); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Open a time-limited resale window
// @Param    X-Identity  header  string  true  "Holder address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Param    req  body  ResaleWindowRequest  true  "payload"
// @Success  200  {object}  ResaleWindowResponse
// @Router   /tickets/{id}/resale-window [post]
func handleResaleWindow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ResaleWindowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		end, err := svcs.Tickets.EnableTimeLimitedResale(
			c.Request.Context(),
			caller(c),
			ticketID,
			time.Duration(req.DurationSec)*time.Second,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ResaleWindowResponse{EndTime: end})
	}
}

// @Summary  Redeem a ticket at the venue
// @Param    X-Identity  header  string  true  "Organizer address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Param    req  body  RedeemRequest  true  "payload"
// @Success  204
// @Failure  403  {object}  ErrorResponse  "bad signature"
// @Failure  409  {object}  ErrorResponse  "secret replay"
// @Router   /tickets/{id}/redeem [post]
func handleRedeem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req RedeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		secret, err := hex.DecodeString(req.Secret)
		if err != nil {
			badRequest(c, "invalid secret (hex)")
			return
		}
		envelope, err := hex.DecodeString(req.Signature)
		if err != nil {
			badRequest(c, "invalid signature (hex)")
			return
		}
		if err := svcs.Tickets.Redeem(c.Request.Context(), caller(c), ticketID, secret, envelope); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Refund a ticket
// @Param    X-Identity  header  string  true  "Holder address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200  {object}  tickets.RefundQuote
// @Router   /tickets/{id}/refund [post]
func handleRefund(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ticketID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		q, err := svcs.Tickets.Refund(c.Request.Context(), caller(c), ticketID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}
