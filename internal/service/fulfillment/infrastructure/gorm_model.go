package infrastructure

import (
	"time"

	"bazaar/internal/service/fulfillment/domain"
)

// ReservationModel 对应数据库中的 reservations 表。
// (status, expires_at) 联合索引支撑清扫器的批量过期更新。
type ReservationModel struct {
	ID               string                   `gorm:"primaryKey;size:36"`
	OrderID          string                   `gorm:"size:64;index"`
	ProductID        string                   `gorm:"size:64;index"`
	ReservedQuantity int                      `gorm:"not null"`
	Status           domain.ReservationStatus `gorm:"size:16;index:idx_status_expires"`
	ReservedAt       time.Time
	ConfirmedAt      *time.Time
	ExpiresAt        time.Time `gorm:"index:idx_status_expires"`
	Version          int64     `gorm:"default:0"`
}

// TableName 指定 GORM 应该使用的表名
func (ReservationModel) TableName() string {
	return "reservations"
}

// ProductStockModel 对应数据库中的 product_stocks 表。
// version 列是预占路径的乐观锁。
type ProductStockModel struct {
	ID         string `gorm:"primaryKey;size:64"`
	TotalStock int    `gorm:"not null"`
	Version    int64  `gorm:"default:0"`
	UpdatedAt  time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductStockModel) TableName() string {
	return "product_stocks"
}

// OrderModel 对应数据库中的 orders 表。
type OrderModel struct {
	ID          string            `gorm:"primaryKey;size:64"`
	UserID      string            `gorm:"size:64;index"`
	TotalAmount int64             `gorm:"not null"`
	State       domain.OrderState `gorm:"size:32"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// PaymentModel 对应数据库中的 payments 表。
// 一个订单最多一条支付记录。
type PaymentModel struct {
	ID            string               `gorm:"primaryKey;size:36"`
	OrderID       string               `gorm:"size:64;uniqueIndex"`
	PaymentKey    string               `gorm:"size:128"`
	Amount        int64                `gorm:"not null"`
	Status        domain.PaymentStatus `gorm:"size:16"`
	FailureCode   string               `gorm:"size:64"`
	FailureReason string               `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PaymentModel) TableName() string {
	return "payments"
}
