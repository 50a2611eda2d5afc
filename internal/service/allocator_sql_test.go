package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/careerfair-reservation/internal/model"
	"github.com/iliyamo/careerfair-reservation/internal/repository"
)

// Two organizers race for one free table on MySQL.  The loser's claim is
// picked as deadlock victim, the transaction is run again and now finds the
// winner's slot.
func TestAssignAfterDeadlockReportsWinner(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	tables := repository.NewTableRepo(sqlx.NewDb(sqlDB, "mysql"))

	slotCols := []string{"session", "table_number", "occupant_key", "assigned_at"}
	seatCols := []string{"session", "entity_type", "entity_id", "table_number", "occupant_key"}
	lockTable := regexp.QuoteMeta(`FROM table_slots WHERE session = ? AND table_number = ? FOR UPDATE`)

	mock.ExpectBegin()
	mock.ExpectQuery(lockTable).
		WithArgs("afternoon", 3).
		WillReturnRows(sqlmock.NewRows(slotCols))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_seats WHERE session = ? AND entity_type = ? AND entity_id = ? FOR UPDATE`)).
		WithArgs("afternoon", "company", 1).
		WillReturnRows(sqlmock.NewRows(seatCols))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_slots WHERE session = ? AND occupant_key = ? FOR UPDATE`)).
		WithArgs("afternoon", "company:1").
		WillReturnRows(sqlmock.NewRows(slotCols))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO table_slots`)).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(lockTable).
		WithArgs("afternoon", 3).
		WillReturnRows(sqlmock.NewRows(slotCols).AddRow("afternoon", 3, "company:9", time.Now().UTC()))
	mock.ExpectRollback()

	cfg := model.SessionConfig{Session: model.SessionAfternoon, Capacity: 15}
	attempts := 0
	err = tables.InTx(context.Background(), func(tx TableTx) error {
		attempts++
		_, err := Allocator{}.Assign(context.Background(), tx, cfg, 3, company(1))
		return err
	})
	var toe *TableOccupiedError
	require.ErrorAs(t, err, &toe)
	assert.Equal(t, 3, toe.Table)
	assert.Equal(t, company(9).SoloOccupant(), toe.Occupant)
	assert.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

// The loser of a seat race at READ COMMITTED gets ER_DUP_ENTRY on the seat
// row and is told where the entity now sits.
func TestAssignLosingSeatRaceReportsCurrentTable(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	tables := repository.NewTableRepo(sqlx.NewDb(sqlDB, "mysql"))

	slotCols := []string{"session", "table_number", "occupant_key", "assigned_at"}
	seatCols := []string{"session", "entity_type", "entity_id", "table_number", "occupant_key"}
	lockSeat := regexp.QuoteMeta(`FROM table_seats WHERE session = ? AND entity_type = ? AND entity_id = ? FOR UPDATE`)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_slots WHERE session = ? AND table_number = ? FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(slotCols))
	mock.ExpectQuery(lockSeat).
		WillReturnRows(sqlmock.NewRows(seatCols))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM table_slots WHERE session = ? AND occupant_key = ? FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(slotCols))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO table_slots`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO table_seats`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'afternoon-company-1' for key 'PRIMARY'"})
	mock.ExpectQuery(lockSeat).
		WithArgs("afternoon", "company", 1).
		WillReturnRows(sqlmock.NewRows(seatCols).AddRow("afternoon", "company", 1, 8, "company:1"))
	mock.ExpectRollback()

	cfg := model.SessionConfig{Session: model.SessionAfternoon, Capacity: 15}
	err = tables.InTx(context.Background(), func(tx TableTx) error {
		_, err := Allocator{}.Assign(context.Background(), tx, cfg, 3, company(1))
		return err
	})
	var toe *TableOccupiedError
	require.ErrorAs(t, err, &toe)
	assert.Equal(t, 8, toe.Table)
	assert.Equal(t, company(1).SoloOccupant(), toe.Occupant)
	require.NoError(t, mock.ExpectationsWereMet())
}
