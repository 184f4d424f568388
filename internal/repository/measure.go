package repository

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/database"
	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

// 插入阶段
const (
	OpConnect = "connect"
	OpBegin   = "begin"
	OpExec    = "exec"
	OpCommit  = "commit"
)

// PersistenceError 单次插入失败（连接、执行或提交）
type PersistenceError struct {
	Op       string
	SensorID int64
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("measure insert for sensor %d failed at %s: %v", e.SensorID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MeasureRepository measures 表仓库
// 每次插入都使用独立连接，结束时无论成功与否都会释放
type MeasureRepository struct {
	open   database.Opener
	query  string
	logger *zap.Logger
}

// NewMeasureRepository 创建 measures 仓库
func NewMeasureRepository(open database.Opener, engine string, logger *zap.Logger) *MeasureRepository {
	return &MeasureRepository{
		open:   open,
		query:  InsertQuery(engine),
		logger: logger,
	}
}

// InsertQuery 返回对应引擎的参数化插入语句，ts 由数据库生成
func InsertQuery(engine string) string {
	if engine == "postgres" {
		return `INSERT INTO measures (value, sensor_id, ts) VALUES ($1, $2, CURRENT_TIMESTAMP)`
	}
	return "INSERT INTO `measures` (`value`, `sensor_id`, `ts`) VALUES (?, ?, CURRENT_TIMESTAMP())"
}

// Insert 插入一条读数
// 返回的错误仅供调用方记录，不应中断轮询
func (r *MeasureRepository) Insert(ctx context.Context, reading models.Reading) (err error) {
	logger := r.logger.With(zap.Int64("sensor_id", reading.SensorID), zap.Float64("value", reading.Value))

	db, err := r.open(ctx)
	if err != nil {
		logger.Error("failed to connect to database, skipping", zap.Error(err))
		return &PersistenceError{Op: OpConnect, SensorID: reading.SensorID, Err: err}
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("failed to close database connection", zap.Error(closeErr))
		}
	}()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("insert failed", zap.String("op", OpBegin), zap.Error(err))
		return &PersistenceError{Op: OpBegin, SensorID: reading.SensorID, Err: err}
	}

	if _, err := tx.ExecContext(ctx, r.query, reading.Value, reading.SensorID); err != nil {
		err = multierr.Append(err, tx.Rollback())
		logger.Error("insert failed", zap.String("op", OpExec), zap.Error(err))
		return &PersistenceError{Op: OpExec, SensorID: reading.SensorID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("insert failed", zap.String("op", OpCommit), zap.Error(err))
		return &PersistenceError{Op: OpCommit, SensorID: reading.SensorID, Err: err}
	}

	logger.Info("insert successful")
	return nil
}
