package convo

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/gradpath/advisor/internal/model"
)

func TestPostgresAppendVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)

	mock.ExpectExec(`UPDATE conversations SET preferences`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "conv-1", 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT COUNT\(1\) FROM conversations`).
		WithArgs("conv-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	err = store.Append(context.Background(), "conv-1", []model.Turn{applicantTurn("hi")}, model.Preferences{}, 3)
	require.ErrorIs(t, err, ErrConcurrentModification)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresWithPool(mock)
	turn := applicantTurn("hi")

	mock.ExpectExec(`UPDATE conversations SET preferences`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "conv-1", 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) FROM turns`).
		WithArgs("conv-1").
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO turns`).
		WithArgs(turn.ID, "conv-1", 3, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), "conv-1", []model.Turn{turn}, model.Preferences{}, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}
