package infrastructure

import (
	"bazaar/internal/service/fulfillment/domain"
)

// ToDomainReservation 将数据库模型转换为领域模型
func ToDomainReservation(model *ReservationModel) *domain.Reservation {
	if model == nil {
		return nil
	}
	return &domain.Reservation{
		ID:               model.ID,
		OrderID:          model.OrderID,
		ProductID:        model.ProductID,
		ReservedQuantity: model.ReservedQuantity,
		Status:           model.Status,
		ReservedAt:       model.ReservedAt,
		ConfirmedAt:      model.ConfirmedAt,
		ExpiresAt:        model.ExpiresAt,
		Version:          model.Version,
	}
}

// FromDomainReservation 将领域模型转换为数据库模型
func FromDomainReservation(dmn *domain.Reservation) *ReservationModel {
	if dmn == nil {
		return nil
	}
	return &ReservationModel{
		ID:               dmn.ID,
		OrderID:          dmn.OrderID,
		ProductID:        dmn.ProductID,
		ReservedQuantity: dmn.ReservedQuantity,
		Status:           dmn.Status,
		ReservedAt:       dmn.ReservedAt,
		ConfirmedAt:      dmn.ConfirmedAt,
		ExpiresAt:        dmn.ExpiresAt,
		Version:          dmn.Version,
	}
}

// ToDomainProductStock 将数据库模型转换为领域模型
func ToDomainProductStock(model *ProductStockModel) *domain.ProductStock {
	if model == nil {
		return nil
	}
	return &domain.ProductStock{
		ID:         model.ID,
		TotalStock: model.TotalStock,
		Version:    model.Version,
		UpdatedAt:  model.UpdatedAt,
	}
}

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	return &domain.Order{
		ID:          model.ID,
		UserID:      model.UserID,
		TotalAmount: model.TotalAmount,
		State:       model.State,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// FromDomainOrder 将领域模型转换为数据库模型
func FromDomainOrder(dmn *domain.Order) *OrderModel {
	if dmn == nil {
		return nil
	}
	return &OrderModel{
		ID:          dmn.ID,
		UserID:      dmn.UserID,
		TotalAmount: dmn.TotalAmount,
		State:       dmn.State,
		CreatedAt:   dmn.CreatedAt,
		UpdatedAt:   dmn.UpdatedAt,
	}
}

// ToDomainPayment 将数据库模型转换为领域模型
func ToDomainPayment(model *PaymentModel) *domain.Payment {
	if model == nil {
		return nil
	}
	return &domain.Payment{
		ID:            model.ID,
		OrderID:       model.OrderID,
		PaymentKey:    model.PaymentKey,
		Amount:        model.Amount,
		Status:        model.Status,
		FailureCode:   model.FailureCode,
		FailureReason: model.FailureReason,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

// FromDomainPayment 将领域模型转换为数据库模型
func FromDomainPayment(dmn *domain.Payment) *PaymentModel {
	if dmn == nil {
		return nil
	}
	return &PaymentModel{
		ID:            dmn.ID,
		OrderID:       dmn.OrderID,
		PaymentKey:    dmn.PaymentKey,
		Amount:        dmn.Amount,
		Status:        dmn.Status,
		FailureCode:   dmn.FailureCode,
		FailureReason: dmn.FailureReason,
		CreatedAt:     dmn.CreatedAt,
		UpdatedAt:     dmn.UpdatedAt,
	}
}
