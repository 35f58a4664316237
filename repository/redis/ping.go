package redis

import (
	"context"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskboard/repository"
)

type pinger struct {
	client *redislib.Client
}

func NewPinger(client *redislib.Client) repository.Pinger {
	return pinger{client: client}
}

func (p pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
