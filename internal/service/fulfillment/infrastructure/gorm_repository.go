package infrastructure

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"bazaar/internal/service/fulfillment/domain"
)

// GormReservationRepository 是 ReservationRepository 的 GORM 实现
type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) CreateAll(ctx context.Context, reservations []*domain.Reservation) error {
	models := make([]*ReservationModel, 0, len(reservations))
	for _, res := range reservations {
		models = append(models, FromDomainReservation(res))
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to create reservations")
	}
	return nil
}

func (r *GormReservationRepository) FindActiveByOrderID(ctx context.Context, orderID string) ([]*domain.Reservation, error) {
	var models []*ReservationModel
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, domain.ReservationReserved).
		Find(&models).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load active reservations")
	}
	reservations := make([]*domain.Reservation, 0, len(models))
	for _, m := range models {
		reservations = append(reservations, ToDomainReservation(m))
	}
	return reservations, nil
}

func (r *GormReservationRepository) SumActiveQuantity(ctx context.Context, productID string) (int, error) {
	// COALESCE 兜底没有任何活跃预占时 SUM 返回 NULL 的情况
	var sum int
	err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Select("COALESCE(SUM(reserved_quantity), 0)").
		Where("product_id = ? AND status = ?", productID, domain.ReservationReserved).
		Scan(&sum).Error
	if err != nil {
		return 0, pkgerrors.Wrap(err, "failed to sum active reservations")
	}
	return sum, nil
}

// TransitionIfActive 条件流转。WHERE status = 'RESERVED' 让确认、取消、
// 过期三方的竞争收敛为"谁先提交谁生效"，输家看到零行受影响。
func (r *GormReservationRepository) TransitionIfActive(ctx context.Context, id string, to domain.ReservationStatus, confirmedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":  to,
		"version": gorm.Expr("version + 1"),
	}
	if confirmedAt != nil {
		updates["confirmed_at"] = *confirmedAt
	}
	result := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("id = ? AND status = ?", id, domain.ReservationReserved).
		Updates(updates)
	if result.Error != nil {
		return false, pkgerrors.Wrap(result.Error, "failed to transition reservation")
	}
	return result.RowsAffected > 0, nil
}

// ExpireDue 用单条批量 UPDATE 回收所有到期的预占，
// 状态条件保证与并发的确认/取消不会互相覆盖。
func (r *GormReservationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Where("status = ? AND expires_at <= ?", domain.ReservationReserved, now).
		Updates(map[string]interface{}{
			"status":  domain.ReservationExpired,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(result.Error, "failed to expire due reservations")
	}
	return result.RowsAffected, nil
}

// GormProductStockRepository 是 ProductStockRepository 的 GORM 实现
type GormProductStockRepository struct {
	db *gorm.DB
}

func NewGormProductStockRepository(db *gorm.DB) *GormProductStockRepository {
	return &GormProductStockRepository{db: db}
}

func (r *GormProductStockRepository) FindByID(ctx context.Context, id string) (*domain.ProductStock, error) {
	var model ProductStockModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to load product stock")
	}
	return ToDomainProductStock(&model), nil
}

// BumpVersion 是预占路径的乐观锁：
// UPDATE product_stocks SET version = version + 1 WHERE id = ? AND version = ?
func (r *GormProductStockRepository) BumpVersion(ctx context.Context, id string, expectedVersion int64) error {
	result := r.db.WithContext(ctx).Model(&ProductStockModel{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Update("version", gorm.Expr("version + 1"))
	if result.Error != nil {
		return pkgerrors.Wrap(result.Error, "failed to bump stock version")
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// DecrementStock 原子地执行"余量充足才扣减"：
// UPDATE product_stocks SET total_stock = total_stock - ? WHERE id = ? AND total_stock >= ?
func (r *GormProductStockRepository) DecrementStock(ctx context.Context, id string, quantity int) error {
	result := r.db.WithContext(ctx).Model(&ProductStockModel{}).
		Where("id = ? AND total_stock >= ?", id, quantity).
		Updates(map[string]interface{}{
			"total_stock": gorm.Expr("total_stock - ?", quantity),
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(result.Error, "failed to decrement stock")
	}
	if result.RowsAffected == 0 {
		return &domain.StockDecrementError{ProductID: id, Quantity: quantity}
	}
	return nil
}

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to load order")
	}
	return ToDomainOrder(&model), nil
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model := FromDomainOrder(order)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save order")
	}
	return nil
}

// GormPaymentRepository 是 PaymentRepository 的 GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	model := FromDomainPayment(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		// order_id 的唯一索引挡住并发的重复创建
		if isDuplicateEntry(err) {
			return pkgerrors.Wrapf(err, "payment record already exists for order %s", payment.OrderID)
		}
		return pkgerrors.Wrap(err, "failed to create payment record")
	}
	return nil
}

func (r *GormPaymentRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Payment, error) {
	var model PaymentModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, pkgerrors.Wrap(err, "failed to load payment record")
	}
	return ToDomainPayment(&model), nil
}

func (r *GormPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	model := FromDomainPayment(payment)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return pkgerrors.Wrap(err, "failed to save payment record")
	}
	return nil
}

// GormUnitOfWork 用 gorm 的 db.Transaction 提供事务边界：
// fn 里拿到的仓储都绑定在同一个 *gorm.DB 事务句柄上。
type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos domain.RepositorySet) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(domain.RepositorySet{
			Reservations: NewGormReservationRepository(tx),
			Products:     NewGormProductStockRepository(tx),
			Orders:       NewGormOrderRepository(tx),
			Payments:     NewGormPaymentRepository(tx),
		})
	})
}
