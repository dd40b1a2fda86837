package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/fairtix/internal/service"
	"github.com/kirinyoku/fairtix/internal/service/lottery"
)

// @Summary  Get lottery with winners
// @Param    id  path  int  true  "Lottery ID"
// @Success  200  {object}  query.LotteryView
// @Failure  404  {object}  ErrorResponse
// @Router   /lotteries/{id} [get]
func handleGetLottery(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		lotteryID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		l, err := svcs.Query.GetLottery(c.Request.Context(), lotteryID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeCachedJSON(c, http.StatusOK, l, "public, max-age=5")
	}
}

// @Summary  Create a pre-sale lottery
// @Param    X-Identity  header  string  true  "Organizer address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    req  body  CreateLotteryRequest  true  "payload"
// @Success  201  {object}  CreateLotteryResponse
// @Failure  409  {object}  ErrorResponse  "lottery exists"
// @Router   /lotteries [post]
func handleCreateLottery(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLotteryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		start, err := parseRFC3339(req.ApplicationStart)
		if err != nil {
			badRequest(c, "invalid application_start (RFC3339)")
			return
		}
		end, err := parseRFC3339(req.ApplicationEnd)
		if err != nil {
			badRequest(c, "invalid application_end (RFC3339)")
			return
		}
		draw, err := parseRFC3339(req.DrawTime)
		if err != nil {
			badRequest(c, "invalid draw_time (RFC3339)")
			return
		}
		id, err := svcs.Lottery.Create(c.Request.Context(), caller(c), lottery.CreateParams{
			EventID:          req.EventID,
			ApplicationStart: start,
			ApplicationEnd:   end,
			DrawTime:         draw,
			MaxWinners:       req.MaxWinners,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateLotteryResponse{LotteryID: id})
	}
}

// @Summary  Apply to a lottery
// @Param    X-Identity  header  string  true  "Applicant address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  int  true  "Lottery ID"
// @Success  204
// @Failure  409  {object}  ErrorResponse  "closed / already applied"
// @Router   /lotteries/{id}/applications [post]
func handleApply(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		lotteryID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Lottery.Apply(c.Request.Context(), caller(c), lotteryID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Draw the winners
// @Param    X-Identity  header  string  true  "Caller address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  int  true  "Lottery ID"
// @Success  200  {object}  DrawResponse
// @Router   /lotteries/{id}/draw [post]
func handleDraw(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		lotteryID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		winners, err := svcs.Lottery.Draw(c.Request.Context(), caller(c), lotteryID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, DrawResponse{Winners: winners})
	}
}

// @Summary  Claim a won ticket
// @Param    X-Identity  header  string  true  "Winner address"
// @Param    X-Timestamp  header  string  true  "Unix seconds the request was signed at"
// @Param    X-Signature  header  string  true  "Hex Ed25519 envelope over the request digest"
// @Param    id  path  int  true  "Lottery ID"
// @Param    req  body  ClaimRequest  true  "payload"
// @Success  201  {object}  TicketResponse
// @Failure  403  {object}  ErrorResponse  "not a winner"
// @Router   /lotteries/{id}/claim [post]
func handleClaim(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		lotteryID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req ClaimRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		ticketID, err := svcs.Lottery.Claim(c.Request.Context(), caller(c), lotteryID, req.SeatInfo, req.Paid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, TicketResponse{TicketID: ticketID.String()})
	}
}
