package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakout-lab/internal/domain"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecordSession(t *testing.T) {
	Init("test_session")

	signals := []domain.Signal{
		{Direction: domain.DirectionLong, Type: domain.SignalBreak},
		{Direction: domain.DirectionLong, Type: domain.SignalRetest},
		{Direction: domain.DirectionLong, Type: domain.SignalConfirmation},
	}
	trades := []domain.Trade{{Direction: domain.DirectionLong}}
	outcomes := []domain.TradeOutcome{{Result: domain.ResultWin3R, RealizedR: 3}}

	RecordSession("COMPLETE", 78, signals, trades, outcomes)

	body := scrape(t)
	assert.Contains(t, body, `test_session_session_completed_total{final_state="COMPLETE"} 1`)
	assert.Contains(t, body, "test_session_session_bars_processed_total 78")
	assert.Contains(t, body, `test_session_session_signals_total{direction="LONG",type="BREAK"} 1`)
	assert.Contains(t, body, `test_session_session_trades_opened_total{direction="LONG"} 1`)
	assert.Contains(t, body, `test_session_session_outcomes_total{result="WIN_3R"} 1`)
	assert.Contains(t, body, "test_session_session_realized_r_count 1")
}

func TestRecordDBQuery(t *testing.T) {
	Init("test_db")

	RecordDBQuery("postgres", "insert_session", 0.01, nil)
	RecordDBQuery("postgres", "insert_session", 0.02, errors.New("boom"))

	body := scrape(t)
	assert.Contains(t, body, `test_db_database_query_errors_total{database="postgres",operation="insert_session"} 1`)
	assert.Contains(t, body, `test_db_database_query_duration_seconds_count{database="postgres",operation="insert_session"} 2`)
}

func TestRecordFeed(t *testing.T) {
	Init("test_feed")
	RecordFeedMessage("bar")
	RecordFeedError("decode")
	RecordFeedReconnect()
	UpdateLastBar(1000)

	body := scrape(t)
	assert.Contains(t, body, `test_feed_feed_messages_total{kind="bar"} 1`)
	assert.Contains(t, body, `test_feed_feed_errors_total{error_type="decode"} 1`)
	assert.Contains(t, body, "test_feed_feed_reconnects_total 1")
	assert.Contains(t, body, "test_feed_feed_last_bar_timestamp_ms 1000")
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	Init("")
	RecordBacktestRun("success", 1.5)

	assert.Contains(t, scrape(t), `breakout_lab_backtest_runs_total{status="success"} 1`)
}
