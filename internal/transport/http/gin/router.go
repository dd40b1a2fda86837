package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/fairtix/internal/domain"
	"github.com/kirinyoku/fairtix/internal/metrics"
	redisrepo "github.com/kirinyoku/fairtix/internal/repository/redis"
	"github.com/kirinyoku/fairtix/internal/service"
)

// Observability groups the optional metrics wiring of the router.
type Observability struct {
	Recorder *metrics.Recorder
	Gatherer prometheus.Gatherer
}

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	auth Authenticator,
	obs Observability,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		LoggingMiddleware(logger),
		RequestIDMiddleware(),
		MetricsMiddleware(obs.Recorder),
		CORS(),
		IdentityMiddleware(auth),
	)
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if obs.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(obs.Gatherer, promhttp.HandlerOpts{})))
	}

	// Public reads
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/tickets/:id", handleGetTicket(svcs))
	r.GET("/tickets/:id/transfers", handleTransferHistory(svcs))
	r.GET("/lotteries/:id", handleGetLottery(svcs))
	r.GET("/users/:id", handleGetProfile(svcs))
	r.GET("/users/:id/tickets", handleTicketsOf(svcs))
	r.GET("/users/:id/balance", handleBalance(svcs))

	// Calls signed by X-Identity
	authed := r.Group("/", RequireIdentityMiddleware())
	{
		authed.POST("/events", handleCreateEvent(svcs))
		authed.POST("/events/:id/deactivate", handleDeactivateEvent(svcs))
		authed.PUT("/events/:id/regions", handleSetEventRegions(svcs))
		authed.POST("/events/:id/tickets", handlePurchase(svcs, idem))

		authed.POST("/tickets/:id/resale", handleResell(svcs))
		authed.POST("/tickets/:id/resale-window", handleResaleWindow(svcs))
		authed.POST("/tickets/:id/redeem", handleRedeem(svcs))
		authed.POST("/tickets/:id/refund", handleRefund(svcs))

		authed.POST("/lotteries", handleCreateLottery(svcs))
		authed.POST("/lotteries/:id/applications", handleApply(svcs))
		authed.POST("/lotteries/:id/draw", handleDraw(svcs))
		authed.POST("/lotteries/:id/claim", handleClaim(svcs))
	}

	// Admin API; authority is checked against the system owner.
	admin := r.Group("/admin", RequireIdentityMiddleware())
	{
		admin.GET("/status", handleStatus(svcs))
		admin.POST("/pause", handlePause(svcs))
		admin.POST("/unpause", handleUnpause(svcs))
		admin.PUT("/fee-recipient", handleSetFeeRecipient(svcs))
		admin.PUT("/refund-fee", handleSetRefundFee(svcs))
		admin.POST("/withdrawals", handleWithdraw(svcs))
		admin.POST("/emergency-withdrawal", handleEmergencyWithdraw(svcs))

		admin.POST("/users/:id/verification", handleVerify(svcs))
		admin.DELETE("/users/:id/verification", handleRevokeVerification(svcs))
		admin.POST("/users/:id/ban", handleBan(svcs))
		admin.DELETE("/users/:id/ban", handleUnban(svcs))
		admin.PUT("/users/:id/purchase-limit", handleSetPurchaseLimit(svcs))
		admin.PUT("/users/:id/region", handleSetRegion(svcs))
		admin.POST("/users/:id/organizer", handleGrantOrganizer(svcs))
		admin.DELETE("/users/:id/organizer", handleRevokeOrganizer(svcs))
		admin.POST("/users/:id/penalties", handlePenalize(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIdentity(c *gin.Context, name, s string) (domain.Identity, bool) {
	id, err := domain.ParseIdentity(s)
	if err != nil {
		badRequest(c, "invalid "+name)
		return "", false
	}
	return id, true
}

func parseIdentityParam(c *gin.Context, name string) (domain.Identity, bool) {
	return parseIdentity(c, name, c.Param(name))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// caller returns the identity set by IdentityMiddleware. Routes behind
// RequireIdentityMiddleware always have one.
func caller(c *gin.Context) domain.Identity {
	id, _ := callerOf(c)
	return id
}

func statusOf(err error) int {
	if errors.Is(err, domain.ErrRateLimited) {
		return http.StatusTooManyRequests
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindPolicy:
		return http.StatusConflict
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindReplay:
		return http.StatusConflict
	case domain.KindPaused:
		return http.StatusServiceUnavailable
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	status := statusOf(err)

	var de *domain.Error
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	_ = c.Error(err).SetType(gin.ErrorTypePublic)

	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		c.Header("Retry-After", "1")
	}

	c.JSON(status, errorBody(err))
}

func errorBody(err error) ErrorResponse {
	var de *domain.Error
	if !errors.As(err, &de) {
		return ErrorResponse{Error: "internal error"}
	}
	return ErrorResponse{Error: de.Error(), Code: domain.CodeOf(err)}
}
