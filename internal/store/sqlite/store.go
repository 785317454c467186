package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigtrade/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store 持有 sqlite 连接并暴露各仓储。
type Store struct {
	db      *gorm.DB
	Orders  *OrderRepo
	Signals *SignalRepo
}

// Open 打开（或创建）sqlite 数据库并完成迁移。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path cannot be empty")
	}
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.OrderRecordModel{}, &model.SignalModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL 模式下允许少量并发读，写仍由持久化队列串行化。
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	return &Store{
		db:      db,
		Orders:  NewOrderRepo(db),
		Signals: NewSignalRepo(db),
	}, nil
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB 暴露底层连接，仅测试使用。
func (s *Store) DB() *gorm.DB { return s.db }

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
