// Package migrate creates and tears down the DynamoDB tables the metadata
// layer depends on.
package migrate

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	log "github.com/sirupsen/logrus"
)

// Migration is one versioned table change.
type Migration interface {
	Version() string
	TableName() string
	Up(ctx context.Context, client *dynamodb.Client) error
	Down(ctx context.Context, client *dynamodb.Client) error
}

// All returns every migration in apply order.
func All() []Migration {
	return []Migration{
		&CreateListingCheckpointTable{},
		&CreateCacheBlockMetaTable{},
	}
}

// Up applies every migration in order.
func Up(ctx context.Context, client *dynamodb.Client) error {
	for _, m := range All() {
		log.Infof("Applying migration %s (%s)", m.Version(), m.TableName())
		if err := m.Up(ctx, client); err != nil {
			return err
		}
	}
	return nil
}

// Down rolls back every migration in reverse order.
func Down(ctx context.Context, client *dynamodb.Client) error {
	ms := All()
	for i := len(ms) - 1; i >= 0; i-- {
		log.Infof("Rolling back migration %s (%s)", ms[i].Version(), ms[i].TableName())
		if err := ms[i].Down(ctx, client); err != nil {
			return err
		}
	}
	return nil
}
