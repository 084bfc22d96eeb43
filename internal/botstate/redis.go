// Package botstate хранит состояние диалога с пользователем между апдейтами.
package botstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Состояния ожидания ввода. Пустая строка означает отсутствие ожидания.
const (
	AwaitingHandle = "awaiting_handle"
	AwaitingSearch = "awaiting_search"
	AwaitingRedeem = "awaiting_redeem"
)

// stateTTL ограничивает жизнь подвисших диалогов.
const stateTTL = 30 * time.Minute

// Store хранит состояние диалога каждого чата в Redis.
type Store struct {
	rdb *redis.Client
}

// Connect создаёт подключение к Redis и проверяет его ping-ом.
func Connect(addr, password string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// Close закрывает подключение к Redis.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func stateKey(chatID int64) string {
	return fmt.Sprintf("botstate:%d", chatID)
}

// Set запоминает, какого ввода бот ждёт от чата.
func (s *Store) Set(ctx context.Context, chatID int64, state string) error {
	if err := s.rdb.Set(ctx, stateKey(chatID), state, stateTTL).Err(); err != nil {
		return fmt.Errorf("set bot state: %w", err)
	}
	return nil
}

// Get возвращает текущее состояние чата; пустая строка — бот ничего не ждёт.
func (s *Store) Get(ctx context.Context, chatID int64) (string, error) {
	state, err := s.rdb.Get(ctx, stateKey(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("get bot state: %w", err)
	}
	return state, nil
}

// Clear сбрасывает состояние чата.
func (s *Store) Clear(ctx context.Context, chatID int64) error {
	if err := s.rdb.Del(ctx, stateKey(chatID)).Err(); err != nil {
		return fmt.Errorf("clear bot state: %w", err)
	}
	return nil
}
