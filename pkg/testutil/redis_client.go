package testutil

import (
	"context"
	"time"
)

type MockRedisClient struct {
	ExistFunc    func(ctx context.Context, key string) (bool, error)
	DelFunc      func(ctx context.Context, key ...string) error
	SAddFunc     func(ctx context.Context, key string, members ...string) error
	SRemFunc     func(ctx context.Context, key string, members ...string) error
	SMembersFunc func(ctx context.Context, key string) ([]string, error)
	SetFunc      func(ctx context.Context, key, value string) error
	SetObjFunc   func(ctx context.Context, key string, obj any, ttl time.Duration) error
	GetFunc      func(ctx context.Context, key string) (string, error)
	GetObjFunc   func(ctx context.Context, key string, v any) error
}

func (m *MockRedisClient) Exist(ctx context.Context, key string) (bool, error) {
	if m.ExistFunc != nil {
		return m.ExistFunc(ctx, key)
	}

	return false, nil
}

func (m *MockRedisClient) Del(ctx context.Context, key ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, key...)
	}

	return nil
}

func (m *MockRedisClient) SAdd(ctx context.Context, key string, members ...string) error {
	if m.SAddFunc != nil {
		return m.SAddFunc(ctx, key, members...)
	}

	return nil
}

func (m *MockRedisClient) SRem(ctx context.Context, key string, members ...string) error {
	if m.SRemFunc != nil {
		return m.SRemFunc(ctx, key, members...)
	}

	return nil
}

func (m *MockRedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	if m.SMembersFunc != nil {
		return m.SMembersFunc(ctx, key)
	}

	return nil, nil
}

func (m *MockRedisClient) Set(ctx context.Context, key, value string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}

	return nil
}

func (m *MockRedisClient) SetObj(ctx context.Context, key string, obj any, ttl time.Duration) error {
	if m.SetObjFunc != nil {
		return m.SetObjFunc(ctx, key, obj, ttl)
	}

	return nil
}

func (m *MockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}

	return "", nil
}

func (m *MockRedisClient) GetObj(ctx context.Context, key string, v any) error {
	if m.GetObjFunc != nil {
		return m.GetObjFunc(ctx, key, v)
	}

	return nil
}
