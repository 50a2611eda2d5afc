package repository_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	repo "github.com/iliyamo/careerfair-reservation/internal/repository"
)

func TestConfigRepo_Get_NotFound(t *testing.T) {
	db, mock := newMock(t)
	r := repo.NewConfigRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT session, capacity, updated_at FROM session_config WHERE session = ?`)).
		WithArgs("morning").
		WillReturnError(sql.ErrNoRows)

	_, err := r.Get(context.Background(), model.SessionMorning)
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepo_SetAndAll(t *testing.T) {
	db, mock := newMock(t)
	r := repo.NewConfigRepo(db)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO session_config (session, capacity, updated_at) VALUES (?, ?, ?)`)).
		WithArgs("afternoon", 20, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM session_config ORDER BY session DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"session", "capacity", "updated_at"}).
			AddRow("morning", 15, now).
			AddRow("afternoon", 20, now))

	require.NoError(t, r.Set(context.Background(), model.SessionConfig{Session: model.SessionAfternoon, Capacity: 20, UpdatedAt: now}))
	all, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 20, all[1].Capacity)
	require.NoError(t, mock.ExpectationsWereMet())
}
