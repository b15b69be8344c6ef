package saga

import (
	"context"
	"sync"

	"bazaar/internal/service/fulfillment/domain"
	"bazaar/internal/service/fulfillment/domain/port"

	"bazaar/internal/pkg/logger"

	"go.opentelemetry.io/otel/trace"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是抽象接口，处理器本身不感知具体实现。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order
	Event  *domain.OrderCreatedEvent
	Tracer trace.Tracer

	// 依赖出站端口 (Interfaces)
	Ledger   port.StockLedger
	Notifier port.NotificationProducer
	UoW      domain.UnitOfWork

	// 补偿函数栈
	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 将一个补偿函数推入栈中。
// 使用 LIFO（后进先出）方式，后注册的补偿先执行。
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 负责执行所有已注册的补偿函数。
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().Str("order", c.Order.ID).Int("count", len(c.compensations)).
		Msg("Executing saga compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
}

// Handler 定义了责任链中每个节点的接口
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

// NextHandler 是一个辅助结构，嵌入到具体的处理器中，以减少重复代码
type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
