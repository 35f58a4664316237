package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/repository"
)

type pinger struct {
	pool *pgxpool.Pool
}

// NewPinger reports pool connectivity to the health monitor.
func NewPinger(pool *pgxpool.Pool) repository.Pinger {
	return pinger{pool: pool}
}

func (p pinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
