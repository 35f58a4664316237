package mongo

import (
	"context"

	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fastygo/taskboard/repository"
)

type pinger struct {
	client *mongodrv.Client
}

func NewPinger(client *mongodrv.Client) repository.Pinger {
	return pinger{client: client}
}

func (p pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}
