// Package events はドメインイベントの発行を提供する。
//
// イベントは通知など周辺機能への合図であり、配信保証はない。
// 発行の失敗は記録操作の成否に影響させない（fire-and-forget）。
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// トピック名。
const (
	// TopicBookmarkSaved はブックマークが保存されたことを示す。
	TopicBookmarkSaved = "bookmark.saved"
	// TopicBookmarkShared はブックマークが共有されたことを示す。
	TopicBookmarkShared = "bookmark.shared"
)

// InteractionEvent は保存・共有イベントのペイロード。
type InteractionEvent struct {
	BookmarkID uuid.UUID `json:"bookmarkId"`
	AccountID  uuid.UUID `json:"accountId"`
}

// Publisher はイベント発行のインターフェース。
type Publisher interface {
	// Publish は指定トピックへイベントを発行する。
	Publish(ctx context.Context, topic string, event InteractionEvent) error
}

// RedisPublisher はRedisのPub/Subでイベントを発行する。
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher はRedisPublisherを生成する。
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish はイベントをJSONにエンコードしてPUBLISHする。
func (p *RedisPublisher) Publish(ctx context.Context, topic string, event InteractionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}
	return nil
}

// NopPublisher は何もしないPublisher。
// Redisが未設定のデプロイおよびテストで使う。
type NopPublisher struct{}

// NewNopPublisher はNopPublisherを生成する。
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

// Publish は何もせずnilを返す。
func (p *NopPublisher) Publish(ctx context.Context, topic string, event InteractionEvent) error {
	return nil
}

// compile-time interface check
var (
	_ Publisher = (*RedisPublisher)(nil)
	_ Publisher = (*NopPublisher)(nil)
)
