// Package db 提供 GORM 初始化、连接池与启动重连、链路追踪插件和事务助手
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/wyfcoding/solarhealth/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Config 数据库配置
type Config struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    int
	LogEnabled         bool
	SlowQueryThreshold int
	// 启动时 ping 的最大尝试次数
	ConnectRetries uint
	// 是否注册 OpenTelemetry 插件
	Tracing bool
}

// DB 数据库实例包装
type DB struct {
	*gorm.DB
	config Config
}

// Dialector 根据驱动名选择方言
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Init 初始化数据库连接
func Init(ctx context.Context, cfg Config) (*DB, error) {
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(cfg.LogEnabled, time.Duration(cfg.SlowQueryThreshold)*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Tracing {
		if err := gdb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	retries := cfg.ConnectRetries
	if retries == 0 {
		retries = 5
	}
	// 数据库容器可能晚于服务启动
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, sqlDB.PingContext(ctx)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(retries))
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(ctx, "Database connected successfully", "driver", cfg.Driver)

	return &DB{DB: gdb, config: cfg}, nil
}

// Close 关闭数据库连接
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type txKey struct{}

// ContextWithTx 把事务连接写入 context
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Conn 返回 context 中的事务连接，没有时返回 fallback
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// Transaction 开启事务并把事务连接放入 ctx，仓储通过 Conn 取用
func (d *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// Upsert 在给定连接（可以是事务）上执行 ON CONFLICT 更新
func Upsert(tx *gorm.DB, record any, uniqueFields []string, updateFields []string) error {
	columns := make([]clause.Column, len(uniqueFields))
	for i, name := range uniqueFields {
		columns[i] = clause.Column{Name: name}
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   columns,
		DoUpdates: clause.AssignmentColumns(updateFields),
	}).Create(record).Error
}

// GormLogger 把 GORM 日志转到 slog
type GormLogger struct {
	enabled            bool
	slowQueryThreshold time.Duration
}

// NewGormLogger 创建 GORM 日志记录器
func NewGormLogger(enabled bool, slowQueryThreshold time.Duration) *GormLogger {
	return &GormLogger{enabled: enabled, slowQueryThreshold: slowQueryThreshold}
}

// LogMode 设置日志模式
func (l *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.enabled {
		logger.Info(ctx, msg, "data", data)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	logger.Warn(ctx, msg, "data", data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	logger.Error(ctx, msg, "data", data)
}

// Trace 记录 SQL 执行日志；未找到记录不算错误，慢查询始终记录
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slowQueryThreshold > 0 && elapsed > l.slowQueryThreshold
	if !l.enabled && !failed && !slow {
		return
	}

	sqlStr, rows := fc()
	args := []any{"duration", elapsed, "rows", rows, "sql", sqlStr}

	switch {
	case failed:
		logger.Error(ctx, "SQL execution failed", append(args, "error", err)...)
	case slow:
		logger.Warn(ctx, "Slow query detected", args...)
	default:
		logger.Debug(ctx, "SQL executed", args...)
	}
}
