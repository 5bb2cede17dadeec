package database

import (
	"fmt"
	"log"
	"strings"

	"momo/config"
	"momo/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 初始化数据库连接并迁移表结构
func Init(cfg *config.Config) error {
	db, err := Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("迁移数据库失败: %w", err)
	}
	DB = db
	log.Println("数据库初始化成功")
	return nil
}

// Open 按驱动类型打开连接，不做迁移
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}

// Dialector 根据配置构建 gorm 方言
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return sqlite.Open(SQLiteDSN(cfg.Path)), nil
	case "mysql":
		charset := cfg.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			charset,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBName, sslmode)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}

// SQLiteDSN 打开外键约束、WAL，并让写事务以 BEGIN IMMEDIATE 开始，
// 保证同一时刻只有一个写者，其他写者在 busy_timeout 内等待
func SQLiteDSN(path string) string {
	if path == "" {
		path = "momo_tracker.db"
	}
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// Migrate 自动迁移全部表
func Migrate(db *gorm.DB) error {
	// 自定义关联表需在迁移前注册
	if err := db.SetupJoinTable(&models.Transaction{}, "Labels", &models.TransactionLabel{}); err != nil {
		return err
	}
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Label{},
		&models.Transaction{},
		&models.TransactionLabel{},
		&models.AuditEntry{},
	)
}

// TableCounts 各业务表的行数，迁移后打印概要使用
func TableCounts(db *gorm.DB) (map[string]int64, error) {
	tables := []schemaTabler{
		&models.User{},
		&models.Category{},
		&models.Label{},
		&models.Transaction{},
		&models.TransactionLabel{},
		&models.AuditEntry{},
	}
	counts := make(map[string]int64, len(tables))
	for _, m := range tables {
		var n int64
		if err := db.Model(m).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("统计 %s 失败: %w", m.TableName(), err)
		}
		counts[m.TableName()] = n
	}
	return counts, nil
}

type schemaTabler interface {
	TableName() string
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return DB
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
