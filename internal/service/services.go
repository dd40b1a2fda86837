package service

import (
	"github.com/kirinyoku/fairtix/internal/service/catalog"
	"github.com/kirinyoku/fairtix/internal/service/common"
	"github.com/kirinyoku/fairtix/internal/service/emergency"
	"github.com/kirinyoku/fairtix/internal/service/lottery"
	"github.com/kirinyoku/fairtix/internal/service/query"
	"github.com/kirinyoku/fairtix/internal/service/tickets"
	"github.com/kirinyoku/fairtix/internal/service/users"
	"github.com/kirinyoku/fairtix/internal/signature"
)

type Services struct {
	Catalog   *catalog.Service
	Users     *users.Service
	Tickets   *tickets.Service
	Lottery   *lottery.Service
	Emergency *emergency.Service
	Query     *query.Service
}

type Config struct {
	Tickets tickets.Config
	Query   query.Config
}

func NewServices(
	deps common.Deps,
	verifier signature.Verifier,
	limiter tickets.Limiter,
	entropy lottery.Entropy,
	cfg Config,
) *Services {
	deps = deps.WithDefaults()

	ticketSvc := tickets.New(deps, verifier, limiter, cfg.Tickets)

	return &Services{
		Catalog:   catalog.New(deps),
		Users:     users.New(deps),
		Tickets:   ticketSvc,
		Lottery:   lottery.New(deps, ticketSvc, entropy),
		Emergency: emergency.New(deps),
		Query:     query.New(deps, cfg.Query),
	}
}
