// Package cache はRedisをバックエンドとするキー・バリューストアクライアントを提供する。
// コレクションスナップショット、レート制限レコード、セッションバインディングの
// 3用途で同一ストアを共有する。グローバルクライアントは持たず、
// 各コンポーネントに構築時へ注入する。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Store はRedisクライアントのハンドル。
// 全操作はコンテキストを受け取り、個別に失敗しうる。
type Store struct {
	pool *redis.Pool
}

// New は指定アドレスへのコネクションプールを持つStoreを生成する。
// 接続は遅延確立されるため、疎通確認にはPingを使うこと。
func New(addr, password string) *Store {
	return &Store{
		pool: &redis.Pool{
			MaxIdle:     3,
			IdleTimeout: 4 * time.Minute,
			Dial: func() (redis.Conn, error) {
				opts := []redis.DialOption{}
				if password != "" {
					opts = append(opts, redis.DialPassword(password))
				}
				return redis.Dial("tcp", addr, opts...)
			},
		},
	}
}

// NewWithPool は既存のプールからStoreを生成する。テスト用。
func NewWithPool(pool *redis.Pool) *Store {
	return &Store{pool: pool}
}

// Get はキーの値を返す。キーが存在しない場合はok=falseを返す（エラーではない）。
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache connection: %w", err)
	}
	defer conn.Close()

	value, err := redis.Bytes(conn.Do("GET", key))
	if err == redis.ErrNil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, true, nil
}

// Set はキーに値を書き込む。ttlが正の場合は秒単位の期限を設定する。
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache connection: %w", err)
	}
	defer conn.Close()

	if ttl > 0 {
		_, err = conn.Do("SET", key, value, "EX", int(ttl.Seconds()))
	} else {
		_, err = conn.Do("SET", key, value)
	}
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。キーが存在しない場合もエラーにしない。
func (s *Store) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Exists はキーの存在を返す。
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get cache connection: %w", err)
	}
	defer conn.Close()

	n, err := redis.Int(conn.Do("EXISTS", key))
	if err != nil {
		return false, fmt.Errorf("failed to check key %q: %w", key, err)
	}
	return n == 1, nil
}

// Ping は疎通確認を行う。
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("failed to ping cache: %w", err)
	}
	return nil
}

// Close はコネクションプールを閉じる。
func (s *Store) Close() error {
	return s.pool.Close()
}
