package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BrunoGil-AS/Vending-Machine-Microservices-sub000/internal/domain/transaction"

	"github.com/redis/go-redis/v9"
)

type GetTransaction struct {
	redisClient *redis.Client
	repo        transaction.Repository
}

func NewGetTransaction(redisClient *redis.Client, repo transaction.Repository) *GetTransaction {
	return &GetTransaction{
		redisClient: redisClient,
		repo:        repo,
	}
}

func (uc *GetTransaction) Execute(ctx context.Context, id string) (*transaction.Transaction, error) {
	cacheKey := fmt.Sprintf("transaction:%s", id)

	if uc.redisClient != nil {
		val, err := uc.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var t transaction.Transaction
			if err := json.Unmarshal([]byte(val), &t); err == nil {
				return &t, nil
			}
		}
	}

	t, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	if uc.redisClient != nil {
		data, _ := json.Marshal(t)
		// Short TTL so in-flight sagas surface status changes quickly.
		uc.redisClient.Set(ctx, cacheKey, data, 1*time.Second)
	}

	return t, nil
}
