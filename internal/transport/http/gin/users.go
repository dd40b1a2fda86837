package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/fairtix/internal/service"
)

// @Summary  Get user profile
// @Param    id  path  string  true  "Address"
// @Success  200  {object}  domain.UserProfile
// @Router   /users/{id} [get]
func handleGetProfile(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdentityParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Query.Profile(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary  List tickets held by a user
// @Param    id  path  string  true  "Address"
// @Success  200  {object}  TicketsResponse
// @Router   /users/{id}/tickets [get]
func handleTicketsOf(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdentityParam(c, "id")
		if !ok {
			return
		}
		ids, err := svcs.Query.TicketsOf(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		resp := TicketsResponse{Holder: id, Tickets: make([]string, 0, len(ids))}
		for _, t := range ids {
			resp.Tickets = append(resp.Tickets, t.String())
		}
		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Ledger balance of an account
// @Param    id  path  string  true  "Address"
// @Success  200  {object}  BalanceResponse
// @Router   /users/{id}/balance [get]
func handleBalance(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIdentityParam(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Query.Balance(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, BalanceResponse{Account: id, Balance: b})
	}
}
