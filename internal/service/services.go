package service

import (
	"log/slog"

	postgresrepo "github.com/kirinyoku/salonq/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/salonq/internal/repository/redis"
	"github.com/kirinyoku/salonq/internal/service/query"
	"github.com/kirinyoku/salonq/internal/service/queue"
	"github.com/kirinyoku/salonq/internal/service/salon"
	"github.com/kirinyoku/salonq/internal/uow"
)

type Services struct {
	Queue *queue.Service
	Query *query.Service
	Salon *salon.Service
}

type Config struct {
	Queue queue.Config
	Query query.Config
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.RoomPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	log *slog.Logger,
	cfg Config,
) *Services {
	tx := uow.NewUoW(store)

	var lim queue.Limiter
	if limiter != nil {
		lim = limiter
	}

	return &Services{
		Queue: queue.New(tx, pubsub, cache, lim, log, cfg.Queue),
		Query: query.New(store.Tickets(), store.Salons(), store.Query(), cache, cfg.Query),
		Salon: salon.New(tx, pubsub, cache, log),
	}
}
