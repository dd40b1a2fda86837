package httpgin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/fairtix/internal/domain"
	redisx "github.com/kirinyoku/fairtix/internal/redis"
	redisrepo "github.com/kirinyoku/fairtix/internal/repository/redis"
	"github.com/kirinyoku/fairtix/internal/service"
	"github.com/kirinyoku/fairtix/internal/service/catalog"
)

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeCachedJSON(c, http.StatusOK, e, "public, max-age=15")
	}
}

// @Summary  Create event
// @Param    X-Identity  header  string  true  "Organizer address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    req  body  CreateEventRequest  true  "payload"
// @Success  201  {object}  CreateEventResponse
// @Failure  400  {object}  ErrorResponse
// @Failure  403  {object}  ErrorResponse
// @Router   /events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var times [3]time.Time
		for i, f := range []struct{ name, value string }{
			{"sale_start", req.SaleStart},
			{"sale_end", req.SaleEnd},
			{"event_date", req.EventDate},
		} {
			t, err := parseRFC3339(f.value)
			if err != nil {
				badRequest(c, "invalid "+f.name+" (RFC3339)")
				return
			}
			times[i] = t
		}

		id, err := svcs.Catalog.CreateEvent(c.Request.Context(), caller(c), catalog.CreateEventParams{
			Name:           req.Name,
			OriginalPrice:  req.OriginalPrice,
			MaxResalePrice: req.MaxResalePrice,
			MaxTickets:     req.MaxTickets,
			SaleStart:      times[0],
			SaleEnd:        times[1],
			EventDate:      times[2],
			Transferable:   req.Transferable,
			Refundable:     req.Refundable,
			AllowedRegions: req.AllowedRegions,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{EventID: id})
	}
}

// @Summary  Deactivate event
// @Param    X-Identity  header  string  true  "Organizer address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  int  true  "Event ID"
// @Success  204
// @Failure  403  {object}  ErrorResponse
// @Router   /events/{id}/deactivate [post]
func handleDeactivateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Catalog.DeactivateEvent(c.Request.Context(), caller(c), eventID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Replace the region allow-list of an event
// @Param    X-Identity  header  string  true  "Organizer address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  int  true  "Event ID"
// @Param    req  body  SetRegionsRequest  true  "payload"
// @Success  204
// @Router   /events/{id}/regions [put]
func handleSetEventRegions(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req SetRegionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Catalog.SetEventRegions(c.Request.Context(), caller(c), eventID, req.Regions); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Buy a ticket (idempotent)
// @Param    X-Identity  header  string  true  "Buyer address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  int  true  "Event ID"
// @Param    req  body  PurchaseRequest  true  "payload"
// @Header   201  {string}  Idempotency-Key  "echo"
// @Success  201  {object}  TicketResponse
// @Failure  409  {object}  ErrorResponse  "sold out / sale closed / idem in progress"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /events/{id}/tickets [post]
func handlePurchase(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		buyer := caller(c)
		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		if idem == nil || idemKey == "" {
			ticketID, err := svcs.Tickets.Purchase(c.Request.Context(), buyer, eventID, req.SeatInfo, req.Paid)
			if err != nil {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusCreated, TicketResponse{TicketID: ticketID.String()})
			return
		}

		storageKey := redisx.KeyIdempotency(fmt.Sprintf("purchase:%d:%s", eventID, buyer), idemKey)
		claim, err := idem.Claim(c.Request.Context(), storageKey, 60*time.Second)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Idempotency-Key", idemKey)

		switch claim.State {
		case redisrepo.ClaimReplay:
			c.Data(claim.Status, "application/json; charset=utf-8", claim.Body)
			return
		case redisrepo.ClaimBusy:
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}

		ticketID, err := svcs.Tickets.Purchase(c.Request.Context(), buyer, eventID, req.SeatInfo, req.Paid)
		if err != nil {
			respondErr(c, err)
			if !replayable(err) {
				_ = idem.Abandon(c.Request.Context(), storageKey)
				return
			}
			storeResponse(c, idem, storageKey, statusOf(err), errorBody(err))
			return
		}

		resp := TicketResponse{TicketID: ticketID.String()}
		storeResponse(c, idem, storageKey, http.StatusCreated, resp)
		c.JSON(http.StatusCreated, resp)
	}
}

// replayable reports whether a purchase outcome is final for its key.
// Transient refusals leave the key free for a retry.
func replayable(err error) bool {
	if errors.Is(err, domain.ErrBusy) {
		return false
	}
	switch statusOf(err) {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return false
	}
	return true
}

func storeResponse(c *gin.Context, idem *redisrepo.IdempotencyStore, key string, status int, body any) {
	b, err := json.Marshal(body)
	if err == nil {
		err = idem.Complete(c.Request.Context(), key, status, b)
	}
	if err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	}
}
