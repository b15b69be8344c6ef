package infrastructure

import (
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const duplicateEntryErrNo = 1062

// NewDB 打开 MySQL 连接并配置连接池。
// 日志走 zerolog，所以这里关掉 gorm 自带的 SQL 日志。
func NewDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mysql connection")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to access underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// AutoMigrate 建表。只在开发/演示环境使用，生产环境应走独立的迁移脚本。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ReservationModel{},
		&ProductStockModel{},
		&OrderModel{},
		&PaymentModel{},
	)
}

// isDuplicateEntry 识别 MySQL 唯一键冲突 (errno 1062)。
// 支付记录的 order_id 唯一索引依赖它来发现并发的重复创建。
func isDuplicateEntry(err error) bool {
	var mysqlErr *driver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntryErrNo
}
