// internal/service/fulfillment/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity 预占数量必须为正数
	ErrInvalidQuantity = errors.New("reserved quantity must be greater than zero")

	// ErrInvalidStateTransition 预占记录已处于终态，拒绝再次流转。
	// 出现这个错误通常意味着调用方存在编程错误或竞态，按 error 级别记录。
	ErrInvalidStateTransition = errors.New("reservation is not in RESERVED state")

	// ErrConcurrencyConflict 乐观锁版本冲突。可重试，但重试次数有上限。
	ErrConcurrencyConflict = errors.New("stock version conflict, concurrent modification detected")

	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product stock row not found")
	ErrPaymentNotFound = errors.New("payment record not found")

	// ErrInvalidPaymentState 支付记录不是 PENDING，或订单不在待支付状态
	ErrInvalidPaymentState = errors.New("payment is not in a confirmable state")

	// ErrAmountMismatch 确认金额与订单金额不一致
	ErrAmountMismatch = errors.New("payment amount does not match order total")
)

// InsufficientStockError 表示某个商品的可用库存不足以满足本次预占。
// 带上商品维度的信息，方便调用方和日志定位是哪一行商品不足。
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// GatewayRejectedError 支付网关拒绝了本次确认，或网关回传的订单/金额与请求不一致。
type GatewayRejectedError struct {
	Code    string
	Message string
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("payment gateway rejected confirmation: [%s] %s", e.Code, e.Message)
}

// StockDecrementError 确认阶段真实扣减库存失败。
// 正常持有预占时不应该发生，一旦发生说明预占账目和真实库存已经漂移，
// 属于致命错误：不自动重试，留待人工对账。
type StockDecrementError struct {
	ProductID string
	Quantity  int
}

func (e *StockDecrementError) Error() string {
	return fmt.Sprintf("failed to decrement stock for product %s by %d: accounting drift suspected",
		e.ProductID, e.Quantity)
}
