package adapter

import (
	"context"
	"fmt"

	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/nacos"
	"bazaar/internal/service/fulfillment/domain/port"
)

const (
	gatewayServiceName = "payment-gateway"
	gatewayConfirmPath = "/api/payments/confirm"
)

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

type confirmResponse struct {
	Approved bool   `json:"approved"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// GatewayHTTPAdapter 实现了 port.PaymentGateway 接口。
// 网关实例通过 Nacos 服务发现定位，每次调用都重新选择健康实例。
type GatewayHTTPAdapter struct {
	client *httpclient.Client
	nacos  *nacos.Client
}

// NewGatewayHTTPAdapter 创建一个新的支付网关适配器。
func NewGatewayHTTPAdapter(client *httpclient.Client, nacosClient *nacos.Client) *GatewayHTTPAdapter {
	return &GatewayHTTPAdapter{client: client, nacos: nacosClient}
}

// Confirm 实现了请求网关确认支付的HTTP调用逻辑。
func (a *GatewayHTTPAdapter) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*port.GatewayConfirmation, error) {
	ip, p, err := a.nacos.DiscoverServiceInstance(gatewayServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to locate payment gateway: %w", err)
	}
	serviceURL := fmt.Sprintf("http://%s:%d%s", ip, p, gatewayConfirmPath)

	var resp confirmResponse
	req := confirmRequest{PaymentKey: paymentKey, OrderID: orderID, Amount: amount}
	if err := a.client.PostJSON(ctx, serviceURL, req, &resp); err != nil {
		return nil, err
	}

	return &port.GatewayConfirmation{
		Approved: resp.Approved,
		OrderID:  resp.OrderID,
		Amount:   resp.Amount,
		Code:     resp.Code,
		Message:  resp.Message,
	}, nil
}
