// internal/service/fulfillment/domain/payment.go
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus 定义了支付记录的状态
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING" // 等待支付网关回调
	PaymentSuccess PaymentStatus = "SUCCESS" // 网关确认且预占已最终化
	PaymentFailed  PaymentStatus = "FAILED"  // 网关失败或超时
)

// Payment 是与订单关联的支付记录，由 Saga 的第二步创建。
type Payment struct {
	ID            string
	OrderID       string
	PaymentKey    string // 网关侧的支付凭证，确认成功后回填
	Amount        int64
	Status        PaymentStatus
	FailureCode   string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment 为订单创建一条 PENDING 状态的支付记录。
func NewPayment(orderID string, amount int64) *Payment {
	now := time.Now()
	return &Payment{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Amount:    amount,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkAsSuccess 网关确认并且台账确认完成后调用。
func (p *Payment) MarkAsSuccess(paymentKey string) error {
	if p.Status != PaymentPending {
		return errors.New("only pending payments can be marked as success")
	}
	p.Status = PaymentSuccess
	p.PaymentKey = paymentKey
	p.UpdatedAt = time.Now()
	return nil
}

// MarkAsFailed 记录支付失败。对已失败的记录重复调用是空操作，
// 保证 failPayment 整条路径可以安全重入。
func (p *Payment) MarkAsFailed(code, reason string) error {
	if p.Status == PaymentFailed {
		return nil
	}
	if p.Status == PaymentSuccess {
		return errors.New("settled payments cannot be marked as failed")
	}
	p.Status = PaymentFailed
	p.FailureCode = code
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	return nil
}
