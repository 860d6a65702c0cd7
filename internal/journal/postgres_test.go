package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMock(t *testing.T, monitorPings bool) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestPostgresSink_Append(t *testing.T) {
	db, mock := newMock(t, false)
	sink := NewPostgresSink(db, time.Second)

	mock.ExpectExec(`INSERT INTO weekly_journal`).
		WithArgs(sqlmock.AnyArg(), "run-1", "2024-W02", "PAPER", "TRADE_ALLOWED",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "All conditions met", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := Record{
		Timestamp:     time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC),
		RunID:         "run-1",
		Week:          "2024-W02",
		Mode:          ModePaper,
		Decision:      "TRADE_ALLOWED",
		ReasonSummary: "All conditions met",
	}
	require.NoError(t, sink.Append(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_AppendError(t *testing.T) {
	db, mock := newMock(t, false)
	sink := NewPostgresSink(db, time.Second)

	mock.ExpectExec(`INSERT INTO weekly_journal`).WillReturnError(errors.New("connection reset"))

	err := sink.Append(context.Background(), Record{Week: "2024-W02"})
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Recent(t *testing.T) {
	db, mock := newMock(t, false)
	sink := NewPostgresSink(db, time.Second)

	cols := []string{
		"ts", "run_id", "week", "mode", "decision", "bwb_valid", "structure_type", "reason_summary",
		"macro_events", "credit_mid", "credit_adj_5", "credit_adj_10", "credit_adj_15",
		"max_loss_mid", "max_loss_adj_5", "max_loss_adj_10", "max_loss_adj_15",
	}
	ts := time.Date(2024, 1, 8, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT ts, run_id`).WithArgs(5).WillReturnRows(
		sqlmock.NewRows(cols).AddRow(ts, "run-1", "2024-W02", "PAPER", "TRADE_ALLOWED", true, "PUT_CREDIT",
			"All conditions met", "{CPI,FOMC}", 10.0, 9.5, 9.0, 8.5, 15.0, 15.5, 16.0, 16.5),
	)

	recs, err := sink.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ModePaper, recs[0].Mode)
	assert.Equal(t, []string{"CPI", "FOMC"}, []string(recs[0].MacroEvents))
	require.NotNil(t, recs[0].MaxLossAdj15)
	assert.Equal(t, 16.5, *recs[0].MaxLossAdj15)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_RetriesPingThenCreatesSchema(t *testing.T) {
	db, mock := newMock(t, true)

	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS weekly_journal`).WillReturnResult(sqlmock.NewResult(0, 0))

	sink, err := connect(context.Background(), db, PostgresConfig{
		Timeout:        time.Second,
		ConnectTimeout: time.Second,
		RetryInterval:  time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, sink)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_GivesUp(t *testing.T) {
	db, mock := newMock(t, true)
	for i := 0; i < 100; i++ {
		mock.ExpectPing().WillReturnError(errors.New("down"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := connect(ctx, db, PostgresConfig{
		Timeout:        10 * time.Millisecond,
		ConnectTimeout: 40 * time.Millisecond,
		RetryInterval:  time.Millisecond,
	}, nil)
	assert.ErrorContains(t, err, "failed to ping database")
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), PostgresConfig{}, nil)
	assert.Error(t, err)
}
