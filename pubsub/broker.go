package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize 是 NewBroker 为每个订阅者通道设置的缓冲区大小。
const DefaultBufferSize = 64

// Broker 实现了基于内存的发布者/订阅者模型。
// 泛型 T 是每个事件携带的数据载荷类型。
type Broker[T any] struct {
	subs       map[chan Event[T]]struct{}
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	dropped    atomic.Int64
}

// NewBroker 创建一个使用默认缓冲区大小的 Broker。
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](DefaultBufferSize)
}

// NewBrokerWithBuffer 创建一个 Broker，每个订阅者通道最多缓存 bufferSize 个未投递事件。
func NewBrokerWithBuffer[T any](bufferSize int) *Broker[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker[T]{
		subs:       make(map[chan Event[T]]struct{}),
		done:       make(chan struct{}),
		bufferSize: bufferSize,
	}
}

// Shutdown 关闭所有订阅者通道。之后的发布会被丢弃，之后的订阅会拿到已关闭的通道。
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
		close(b.done)
	}

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// Subscribe 注册一个订阅者并返回接收事件的通道。
// 该通道会在 ctx.Done() 触发或 Broker 关闭时自动注销并关闭。
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub)
		}
	}()

	return sub
}

// SubscriberCount 返回当前活跃订阅者数量。
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped 返回因订阅者缓冲区已满而跳过的投递次数。
func (b *Broker[T]) Dropped() int64 {
	return b.dropped.Load()
}

// Publish 以非阻塞方式向所有订阅者投递事件，缓冲区已满的订阅者会错过本次事件。
func (b *Broker[T]) Publish(t EventType, payload T) {
	event := Event[T]{Type: t, Payload: payload}

	// 发送期间持有读锁，防止 Shutdown 在发送中途关闭通道
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
		}
	}
}
