package port

import "context"

// GatewayConfirmation 是支付网关对确认请求的应答。
// OrderID 和 Amount 是网关侧的回声，协调器会拿它们与请求比对。
type GatewayConfirmation struct {
	Approved bool
	OrderID  string
	Amount   int64
	Code     string
	Message  string
}

// PaymentGateway 是支付网关的出站端口。
type PaymentGateway interface {
	// Confirm 请求网关对一笔支付做最终确认。
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*GatewayConfirmation, error)
}
