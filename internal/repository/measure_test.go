package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sarinkhan/rpi-sensor-fetcher/internal/models"
)

func setupMockDB(t *testing.T, engine string) (sqlmock.Sqlmock, *MeasureRepository, *int) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	opened := 0
	open := func(ctx context.Context) (*sql.DB, error) {
		opened++
		return db, nil
	}
	repo := NewMeasureRepository(open, engine, zap.NewNop())

	return mock, repo, &opened
}

func TestInsert_Success(t *testing.T) {
	mock, repo, opened := setupMockDB(t, "mysql")

	mock.ExpectBegin()
	mock.ExpectExec(InsertQuery("mysql")).
		WithArgs(21.5, int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	err := repo.Insert(context.Background(), models.Reading{SensorID: 1, Value: 21.5})

	require.NoError(t, err)
	assert.Equal(t, 1, *opened)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_PostgresPlaceholders(t *testing.T) {
	mock, repo, _ := setupMockDB(t, "postgres")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO measures (value, sensor_id, ts) VALUES ($1, $2, CURRENT_TIMESTAMP)`).
		WithArgs(40001.0, int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	err := repo.Insert(context.Background(), models.Reading{SensorID: 7, Value: 40001})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_ExecFailureRollsBack(t *testing.T) {
	mock, repo, _ := setupMockDB(t, "mysql")

	mock.ExpectBegin()
	mock.ExpectExec(InsertQuery("mysql")).
		WithArgs(12.0, int64(3)).
		WillReturnError(errors.New("foreign key constraint fails"))
	mock.ExpectRollback()
	mock.ExpectClose()

	err := repo.Insert(context.Background(), models.Reading{SensorID: 3, Value: 12})

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, OpExec, perr.Op)
	assert.Equal(t, int64(3), perr.SensorID)
	assert.Contains(t, err.Error(), "foreign key constraint fails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_BeginFailureReleasesConnection(t *testing.T) {
	mock, repo, _ := setupMockDB(t, "mysql")

	mock.ExpectBegin().WillReturnError(errors.New("server has gone away"))
	mock.ExpectClose()

	err := repo.Insert(context.Background(), models.Reading{SensorID: 1, Value: 1})

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, OpBegin, perr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_CommitFailure(t *testing.T) {
	mock, repo, _ := setupMockDB(t, "mysql")

	mock.ExpectBegin()
	mock.ExpectExec(InsertQuery("mysql")).
		WithArgs(5.5, int64(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("deadlock"))
	mock.ExpectClose()

	err := repo.Insert(context.Background(), models.Reading{SensorID: 2, Value: 5.5})

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, OpCommit, perr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_ConnectFailure(t *testing.T) {
	open := func(ctx context.Context) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}
	repo := NewMeasureRepository(open, "mysql", zap.NewNop())

	err := repo.Insert(context.Background(), models.Reading{SensorID: 1, Value: 21.5})

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, OpConnect, perr.Op)
}

func TestInsert_CloseErrorDoesNotFailInsert(t *testing.T) {
	mock, repo, _ := setupMockDB(t, "mysql")

	mock.ExpectBegin()
	mock.ExpectExec(InsertQuery("mysql")).
		WithArgs(1.25, int64(4)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectClose().WillReturnError(errors.New("broken pipe"))

	err := repo.Insert(context.Background(), models.Reading{SensorID: 4, Value: 1.25})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertQuery_IsParameterized(t *testing.T) {
	for _, engine := range []string{"mysql", "postgres"} {
		q := InsertQuery(engine)
		assert.NotContains(t, q, "'")
		assert.Contains(t, q, "measures")
	}
}
