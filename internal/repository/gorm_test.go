package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hprof-analysis/pkg/config"
	"github.com/hprof-analysis/pkg/model"
)

// newMockRepo opens a GORM connection backed by sqlmock.
func newMockRepo(t *testing.T) (*GormReportRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewGormReportRepository(gormDB), mock
}

func TestGormReportRepository_GetReportByTaskUUID(t *testing.T) {
	repo, mock := newMockRepo(t)

	tagCounts, _ := json.Marshal([]model.TagCount{{Name: "HEAP DUMP", Code: 0x0C, Count: 1}})
	coroutines, _ := json.Marshal([]model.CoroutineEntry{{ObjectID: "100", Class: "C", State: "ACTIVE"}})

	rows := sqlmock.NewRows([]string{
		"id", "tid", "dump_file", "identifier_size", "timestamp_millis",
		"num_records", "num_sub_tags", "total_classes", "total_instances",
		"tag_counts", "sub_tag_counts", "coroutines",
		"analyzed_at", "analysis_time_ms", "create_time",
	}).AddRow(
		int64(1), "task-1", "heap.hprof", 8, uint64(0),
		3, 2, 1, 1,
		tagCounts, []byte("[]"), coroutines,
		time.Now(), int64(12), time.Now(),
	)

	mock.ExpectQuery(`SELECT \* FROM "heap_dump_reports" WHERE tid = \$1`).WillReturnRows(rows)

	report, err := repo.GetReportByTaskUUID(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", report.TaskUUID)
	assert.Equal(t, 8, report.IdentifierSize)
	require.Len(t, report.TagCounts, 1)
	assert.Equal(t, "HEAP DUMP", report.TagCounts[0].Name)
	require.Len(t, report.Coroutines, 1)
	assert.Equal(t, "ACTIVE", report.Coroutines[0].State)
}

func TestGormReportRepository_GetReportByTaskUUID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "heap_dump_reports"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetReportByTaskUUID(context.Background(), "missing")
	assert.ErrorContains(t, err, "report not found")
}

func TestGormReportRepository_SaveReport(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "heap_dump_reports"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	err := repo.SaveReport(context.Background(), &model.HeapDumpReport{
		TaskUUID:   "task-1",
		AnalyzedAt: time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewGormDB_UnsupportedType(t *testing.T) {
	_, err := NewGormDB(&config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}
