package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rbac-rag-api/internal/domain/entity"
)

const principalKeyPrefix = "principal:"

// PrincipalCache 按用户 ID 缓存请求主体（角色与部门）
//
// 只用于减少每次请求的身份存储查询；用户变更时由账户服务主动失效。
type PrincipalCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewPrincipalCache 创建主体缓存
func NewPrincipalCache(cache *Cache, ttl time.Duration) *PrincipalCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PrincipalCache{cache: cache, ttl: ttl}
}

// Get 读取缓存的主体；未命中返回 ok=false
func (c *PrincipalCache) Get(ctx context.Context, userID string) (entity.Principal, bool, error) {
	b, err := c.cache.Get(ctx, principalKeyPrefix+userID)
	if err != nil {
		if IsNil(err) {
			return entity.Principal{}, false, nil
		}
		return entity.Principal{}, false, err
	}

	var p entity.Principal
	if err := json.Unmarshal(b, &p); err != nil {
		return entity.Principal{}, false, fmt.Errorf("failed to decode cached principal: %w", err)
	}
	return p, true, nil
}

// Set 写入主体
func (c *PrincipalCache) Set(ctx context.Context, p entity.Principal) error {
	return c.cache.Set(ctx, principalKeyPrefix+p.UserID, p, c.ttl)
}

// Invalidate 删除用户的缓存主体
func (c *PrincipalCache) Invalidate(ctx context.Context, userID string) error {
	return c.cache.Delete(ctx, principalKeyPrefix+userID)
}
