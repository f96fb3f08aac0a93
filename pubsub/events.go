package pubsub

import "context"

const (
	// CreatedEvent 表示新建资源，例如提交的任务
	CreatedEvent EventType = "created"
	// UpdatedEvent 表示资源有进展
	UpdatedEvent EventType = "updated"
	// FinishedEvent 表示资源已完成
	FinishedEvent EventType = "finished"
	// CancelledEvent 表示资源被所有者取消
	CancelledEvent EventType = "cancelled"
)

// Subscriber 提供事件通道，context 结束时通道关闭。
type Subscriber[T any] interface {
	Subscribe(context.Context) <-chan Event[T]
}

type (
	// EventType 标识资源发生的事件类型。
	EventType string

	// Event 是一次生命周期通知。
	Event[T any] struct {
		Type    EventType
		Payload T
	}

	// Publisher 将事件分发给所有订阅者。
	Publisher[T any] interface {
		Publish(EventType, T)
	}
)
