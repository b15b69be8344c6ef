// internal/service/fulfillment/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/fulfillment/domain"
	"bazaar/internal/service/fulfillment/domain/port"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

const (
	serviceName           = "fulfillment-service"
	paymentConfirmedTopic = "payment-confirmed-topic"
	paymentFailedTopic    = "payment-failed-topic"
)

// FulfillmentHandler 封装了履约服务的 HTTP 处理器。
// 支付结果走异步边界：HTTP 回调只负责把事件发进 Kafka，
// 真正的状态收敛由消费者完成，回调方拿到 202。
type FulfillmentHandler struct {
	ledger        port.StockLedger
	confirmWriter *kafka.Writer
	failWriter    *kafka.Writer
}

// NewFulfillmentHandler 创建一个新的 HTTP 处理器实例
func NewFulfillmentHandler(ledger port.StockLedger, confirmWriter, failWriter *kafka.Writer) *FulfillmentHandler {
	return &FulfillmentHandler{
		ledger:        ledger,
		confirmWriter: confirmWriter,
		failWriter:    failWriter,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *FulfillmentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stock/available", h.availableStockHandler)
	mux.HandleFunc("/payments/confirm", h.confirmPaymentHandler)
	mux.HandleFunc("/payments/fail", h.failPaymentHandler)
}

func (h *FulfillmentHandler) availableStockHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.AvailableStock")
	defer span.End()

	productID := r.URL.Query().Get("productId")
	if productID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("product.id", productID))

	available, err := h.ledger.AvailableStock(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"productId": productID,
		"available": available,
	})
}

func (h *FulfillmentHandler) confirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.ConfirmPayment")
	defer span.End()

	var event domain.PaymentConfirmedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if event.OrderID == "" || event.PaymentKey == "" {
		http.Error(w, "orderId and paymentKey are required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", paymentConfirmedTopic),
	)

	payload, err := json.Marshal(&event)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := mq.ProduceMessage(ctx, h.confirmWriter, []byte(event.OrderID), payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order", event.OrderID).Msg("Failed to publish payment confirmation event")
		http.Error(w, "failed to accept payment confirmation", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "orderId": event.OrderID})
}

func (h *FulfillmentHandler) failPaymentHandler(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	tracer := otel.Tracer(serviceName)
	ctx, span := tracer.Start(ctx, "api.FailPayment")
	defer span.End()

	var event domain.PaymentFailedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if event.OrderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", paymentFailedTopic),
	)

	payload, err := json.Marshal(&event)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := mq.ProduceMessage(ctx, h.failWriter, []byte(event.OrderID), payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order", event.OrderID).Msg("Failed to publish payment failure event")
		http.Error(w, "failed to accept payment failure", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "orderId": event.OrderID})
}
