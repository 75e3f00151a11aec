package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakout-lab/internal/domain"
)

// 2024-03-15 09:30 America/New_York
const sessionOpenMs int64 = 1710509400000

const barMs int64 = 5 * 60_000

// bar builds a completed 5-minute bar i slots after the open.
func bar(i int, open, high, low, close int64) *domain.Candle {
	return &domain.Candle{
		Symbol:         "SPY",
		TimestampMs:    sessionOpenMs + int64(i)*barMs,
		Open:           open,
		High:           high,
		Low:            low,
		Close:          close,
		Volume:         1000,
		Completed:      true,
		BarSizeMinutes: 5,
	}
}

// startMonitoring seeds the 502.00/499.00 zone and completes it with a
// close on resistance, leaving the machine in MONITORING.
func startMonitoring(t *testing.T, cfg Config) *Machine {
	t.Helper()

	m := New(cfg)
	require.Equal(t, StateBuildingZone, m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs)))
	require.Equal(t, StateObservingZone, m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100))))
	require.Equal(t, StateMonitoring, m.Send(NewBar(bar(1, 50100, 50250, 50050, 50200))))
	return m
}

// openLong drives a break and a same-bar retest+confirm at 502.80.
func openLong(t *testing.T, m *Machine) {
	t.Helper()

	m.Send(NewBar(bar(2, 50200, 50350, 50150, 50300)))
	require.Equal(t, PhaseBreakDetected, m.Context().Long.Phase)

	m.Send(NewBar(bar(3, 50300, 50320, 50200, 50280)))
	require.Equal(t, PhasePositionOpen, m.Context().Long.Phase)
}

func TestMachine_ZoneSeeding(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	ctx := m.Context()

	require.NotNil(t, ctx.Zone)
	assert.Equal(t, int64(50200), ctx.Zone.Resistance)
	assert.Equal(t, int64(49900), ctx.Zone.Support)
	assert.Equal(t, int64(300), ctx.Zone.Spread)
	assert.Equal(t, domain.ZoneDefined, ctx.Zone.Status)
	assert.Equal(t, sessionOpenMs, ctx.Zone.DefinedAtMs)
	assert.Len(t, ctx.Zone.SourceBars, 1)
	assert.Len(t, ctx.ZoneBars, 1)
	assert.Len(t, ctx.AllBars, 2)
	assert.Equal(t, PhaseWatching, ctx.Long.Phase)
	assert.Equal(t, PhaseWatching, ctx.Short.Phase)

	// Later bars never move the zone
	m.Send(NewBar(bar(2, 50200, 51000, 49000, 50500)))
	assert.Equal(t, int64(50200), m.Context().Zone.Resistance)
	assert.Equal(t, int64(49900), m.Context().Zone.Support)
}

func TestMachine_DefaultZoneEndIsOneBarAfterSeed(t *testing.T) {
	m := New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", 0))
	m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))

	assert.Equal(t, sessionOpenMs+barMs, m.Context().ZoneEndMs)
	assert.Equal(t, StateMonitoring, m.Send(NewBar(bar(1, 50100, 50250, 50050, 50200))))
}

func TestMachine_ObservingAccumulatesUntilZoneEnd(t *testing.T) {
	m := New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+3*barMs))
	m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))

	assert.Equal(t, StateObservingZone, m.Send(NewBar(bar(1, 50100, 50150, 50000, 50100))))
	assert.Equal(t, StateObservingZone, m.Send(NewBar(bar(2, 50100, 50150, 50000, 50100))))
	assert.Equal(t, StateMonitoring, m.Send(NewBar(bar(3, 50100, 50250, 50050, 50250))))

	ctx := m.Context()
	assert.Len(t, ctx.AllBars, 4)
	assert.Len(t, ctx.ZoneBars, 1)
}

func TestMachine_IncompleteBarsIgnored(t *testing.T) {
	m := New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))

	partial := bar(0, 50000, 50200, 49900, 50100)
	partial.Completed = false
	assert.Equal(t, StateBuildingZone, m.Send(NewBar(partial)))
	assert.Nil(t, m.Context().Zone)
	assert.Empty(t, m.Context().AllBars)

	// NEW_BAR without a candle is a no-op too
	assert.Equal(t, StateBuildingZone, m.Send(Event{Type: EventNewBar}))
}

func TestMachine_IdleIgnoresBars(t *testing.T) {
	m := New(DefaultConfig())
	assert.Equal(t, StateIdle, m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100))))
	assert.Equal(t, StateIdle, m.Send(SessionEnd()))
}

func TestMachine_ChoppyBoundary(t *testing.T) {
	tests := []struct {
		name       string
		close      int64
		wantState  State
		wantStatus domain.ZoneStatus
	}{
		{"close on resistance", 50200, StateMonitoring, domain.ZoneDefined},
		{"close on support", 49900, StateMonitoring, domain.ZoneDefined},
		{"one cent below resistance", 50199, StateNoTrade, domain.ZoneNoTradeChoppy},
		{"one cent above support", 49901, StateNoTrade, domain.ZoneNoTradeChoppy},
		{"above zone", 50300, StateMonitoring, domain.ZoneDefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(DefaultConfig())
			m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
			m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))

			got := m.Send(NewBar(bar(1, 50100, 50350, 49850, tt.close)))
			assert.Equal(t, tt.wantState, got)
			assert.Equal(t, tt.wantStatus, m.Context().Zone.Status)
		})
	}
}

func TestMachine_ChoppyNeverTrades(t *testing.T) {
	m := New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
	m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))
	require.Equal(t, StateNoTrade, m.Send(NewBar(bar(1, 50100, 50150, 50000, 50100))))

	m.Send(NewBar(bar(2, 50200, 50350, 50150, 50300)))
	m.Send(NewBar(bar(3, 50300, 50320, 50200, 50280)))
	m.Send(SessionEnd())

	ctx := m.Context()
	assert.Equal(t, StateNoTrade, ctx.State)
	assert.Equal(t, domain.ZoneNoTradeChoppy, ctx.Zone.Status)
	assert.Empty(t, ctx.Signals)
	assert.Empty(t, ctx.Trades)
	assert.Empty(t, ctx.Outcomes)
}

func TestMachine_Degenerate(t *testing.T) {
	tests := []struct {
		name      string
		high, low int64
		minSpread int64
	}{
		{"too narrow", 50002, 50000, 5},
		{"too wide", 60000, 50000, 5},
		{"zero midpoint", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MinZoneSpreadCents = tt.minSpread

			m := New(cfg)
			m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
			m.Send(NewBar(bar(0, tt.low, tt.high, tt.low, tt.low)))
			got := m.Send(NewBar(bar(1, tt.high, tt.high, tt.high, tt.high)))

			assert.Equal(t, StateNoTrade, got)
			assert.Equal(t, domain.ZoneNoTradeDegenerate, m.Context().Zone.Status)
		})
	}
}

func TestMachine_CleanLongWin(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	ctx := m.Context()
	require.Len(t, ctx.Trades, 1)
	trade := ctx.Trades[0]
	assert.Equal(t, "2024-03-15_SPY_LONG_1", trade.ID)
	assert.Equal(t, int64(50280), trade.EntryPrice)
	assert.Equal(t, int64(49900), trade.StopLevel)
	assert.Equal(t, int64(49900), trade.CurrentStop)
	assert.Equal(t, int64(380), trade.RValue)
	assert.Equal(t, int64(50660), trade.Target1R)
	assert.Equal(t, int64(51040), trade.Target2R)
	assert.Equal(t, int64(51420), trade.Target3R)
	assert.Equal(t, domain.TradeOpen, trade.Status)
	assert.Equal(t, domain.DirectionLong, ctx.ActiveDirection)
	assert.Equal(t, domain.SignalConfirmation, trade.EntrySignal.Type)

	m.Send(NewBar(bar(4, 50280, 50500, 50250, 50400)))
	m.Send(NewBar(bar(5, 50400, 51500, 50400, 51450)))

	ctx = m.Context()
	assert.Equal(t, PhaseResolved, ctx.Long.Phase)
	assert.Equal(t, domain.TradeTargetHit, ctx.Trades[0].Status)
	require.Len(t, ctx.Outcomes, 1)

	out := ctx.Outcomes[0]
	ts := bar(5, 0, 0, 0, 0).TimestampMs
	assert.Equal(t, trade.ID, out.TradeID)
	assert.Equal(t, domain.ResultWin3R, out.Result)
	assert.Equal(t, int64(51420), out.ExitPrice)
	assert.Equal(t, ts, out.ExitTimestampMs)
	assert.Equal(t, 3.0, out.RealizedR)
	assert.Equal(t, 3, out.FirstThresholdReached)
	assert.Equal(t, int64(0), out.TimestampStop)
	assert.Equal(t, 2, out.BarsHeld)
	assert.Equal(t, 3.21, out.MaxFavorableR)
	assert.Equal(t, 0.08, out.MaxAdverseR)

	// Backfilled milestones share the resolving bar's timestamp
	assert.Equal(t, ts, out.Timestamp1R)
	assert.Equal(t, ts, out.Timestamp2R)
	assert.Equal(t, ts, out.Timestamp3R)
	assert.True(t, ctx.Reached1R)
	assert.True(t, ctx.Reached2R)
	assert.True(t, ctx.Reached3R)

	assert.Equal(t, StateComplete, m.Send(SessionEnd()))
	assert.Len(t, m.Context().Outcomes, 1)
}

func TestMachine_SignalLog(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	signals := m.Context().Signals
	require.Len(t, signals, 3)

	assert.Equal(t, domain.SignalBreak, signals[0].Type)
	assert.Equal(t, int64(50300), signals[0].Price)
	assert.Equal(t, domain.SignalRetest, signals[1].Type)
	assert.Equal(t, domain.SignalConfirmation, signals[2].Type)
	for _, s := range signals {
		assert.Equal(t, domain.DirectionLong, s.Direction)
		assert.Equal(t, 1, s.AttemptNumber)
	}
	assert.Equal(t, signals[1].TimestampMs, signals[2].TimestampMs)
	assert.Equal(t, int64(50280), signals[2].TriggerCandle.Close)
}

func TestMachine_SteppedMilestones(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	m.Send(NewBar(bar(4, 50280, 50700, 50280, 50700)))
	ctx := m.Context()
	assert.True(t, ctx.Reached1R)
	assert.False(t, ctx.Reached2R)
	assert.Equal(t, bar(4, 0, 0, 0, 0).TimestampMs, ctx.Timestamp1R)
	assert.Equal(t, int64(50280), ctx.Trades[0].CurrentStop)
	assert.Equal(t, int64(49900), ctx.Trades[0].StopLevel)

	m.Send(NewBar(bar(5, 50700, 51100, 50700, 51100)))
	ctx = m.Context()
	assert.True(t, ctx.Reached2R)
	assert.Equal(t, bar(5, 0, 0, 0, 0).TimestampMs, ctx.Timestamp2R)

	m.Send(NewBar(bar(6, 51100, 51420, 51100, 51420)))
	out := m.Context().Outcomes[0]
	assert.Equal(t, domain.ResultWin3R, out.Result)
	assert.Equal(t, bar(4, 0, 0, 0, 0).TimestampMs, out.Timestamp1R)
	assert.Equal(t, bar(5, 0, 0, 0, 0).TimestampMs, out.Timestamp2R)
	assert.Equal(t, bar(6, 0, 0, 0, 0).TimestampMs, out.Timestamp3R)
	assert.Equal(t, 3, out.BarsHeld)
}

func TestMachine_2RBackfills1R(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	m.Send(NewBar(bar(4, 50280, 51100, 50280, 51050)))

	ctx := m.Context()
	ts := bar(4, 0, 0, 0, 0).TimestampMs
	assert.True(t, ctx.Reached1R)
	assert.True(t, ctx.Reached2R)
	assert.False(t, ctx.Reached3R)
	assert.Equal(t, ts, ctx.Timestamp1R)
	assert.Equal(t, ts, ctx.Timestamp2R)
	assert.Equal(t, int64(50280), ctx.Trades[0].CurrentStop)
	assert.Equal(t, PhasePositionOpen, ctx.Long.Phase)
}

func TestMachine_StopBefore1R(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	m.Send(NewBar(bar(4, 50280, 50300, 49800, 49850)))

	ctx := m.Context()
	require.Len(t, ctx.Outcomes, 1)
	out := ctx.Outcomes[0]
	ts := bar(4, 0, 0, 0, 0).TimestampMs
	assert.Equal(t, domain.ResultLoss, out.Result)
	assert.Equal(t, int64(49900), out.ExitPrice)
	assert.Equal(t, -1.0, out.RealizedR)
	assert.Equal(t, ts, out.TimestampStop)
	assert.Equal(t, ts, out.ExitTimestampMs)
	assert.Equal(t, 0, out.FirstThresholdReached)
	assert.Equal(t, int64(0), out.Timestamp1R)
	assert.Equal(t, 1, out.BarsHeld)
	assert.Equal(t, domain.TradeStoppedOut, ctx.Trades[0].Status)
	assert.Equal(t, PhaseResolved, ctx.Long.Phase)
}

func TestMachine_BreakevenStop(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	m.Send(NewBar(bar(4, 50280, 50700, 50280, 50700)))
	require.Equal(t, int64(50280), m.Context().Trades[0].CurrentStop)

	m.Send(NewBar(bar(5, 50700, 50700, 50200, 50250)))

	out := m.Context().Outcomes[0]
	assert.Equal(t, domain.ResultBreakevenStop, out.Result)
	assert.Equal(t, int64(50280), out.ExitPrice)
	assert.Equal(t, 0.0, out.RealizedR)
	assert.Equal(t, 1, out.FirstThresholdReached)
	assert.Equal(t, bar(4, 0, 0, 0, 0).TimestampMs, out.Timestamp1R)
}

func TestMachine_TrailingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailStopAt1R = false
	m := startMonitoring(t, cfg)
	openLong(t, m)

	m.Send(NewBar(bar(4, 50280, 50700, 50280, 50700)))
	assert.Equal(t, int64(49900), m.Context().Trades[0].CurrentStop)

	// Back to breakeven is not a stop any more
	m.Send(NewBar(bar(5, 50700, 50700, 50200, 50250)))
	assert.Empty(t, m.Context().Outcomes)

	m.Send(NewBar(bar(6, 50250, 50250, 49800, 49850)))
	out := m.Context().Outcomes[0]
	assert.Equal(t, domain.ResultLoss, out.Result)
	assert.Equal(t, -1.0, out.RealizedR)
	assert.Equal(t, 1, out.FirstThresholdReached)
}

func TestMachine_SessionTimeout(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	m.Send(NewBar(bar(4, 50280, 50500, 50250, 50400)))
	assert.Equal(t, StateComplete, m.Send(SessionEnd()))

	ctx := m.Context()
	require.Len(t, ctx.Outcomes, 1)
	out := ctx.Outcomes[0]
	assert.Equal(t, domain.ResultSessionTimeout, out.Result)
	assert.Equal(t, int64(50400), out.ExitPrice)
	assert.Equal(t, bar(4, 0, 0, 0, 0).TimestampMs, out.ExitTimestampMs)
	assert.Equal(t, int64(0), out.TimestampStop)
	assert.Equal(t, 0.32, out.RealizedR)
	assert.Equal(t, domain.TradeSessionExpired, ctx.Trades[0].Status)
	assert.Equal(t, PhaseResolved, ctx.Long.Phase)
}

func TestMachine_SessionEndWithoutPosition(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	m.Send(NewBar(bar(2, 50200, 50350, 50150, 50300)))

	assert.Equal(t, StateComplete, m.Send(SessionEnd()))
	assert.Empty(t, m.Context().Outcomes)
}

func TestMachine_SessionEndBeforeMonitoring(t *testing.T) {
	m := New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
	assert.Equal(t, StateComplete, m.Send(SessionEnd()))

	m = New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
	m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))
	assert.Equal(t, StateComplete, m.Send(SessionEnd()))
	assert.Empty(t, m.Context().Trades)
}

func TestSessionTimeout_NoBarsIsNoop(t *testing.T) {
	c := NewContext(DefaultConfig())
	c.Long.Phase = PhasePositionOpen
	c.Trades = []domain.Trade{{ID: "t", Direction: domain.DirectionLong, Status: domain.TradeOpen, RValue: 10}}

	require.NoError(t, resolveSessionTimeout(&c))
	assert.Empty(t, c.Outcomes)
	assert.Equal(t, domain.TradeOpen, c.Trades[0].Status)
}

func TestMachine_CleanShortWin(t *testing.T) {
	m := New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
	m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))
	require.Equal(t, StateMonitoring, m.Send(NewBar(bar(1, 50000, 50050, 49850, 49900))))

	m.Send(NewBar(bar(2, 49900, 49950, 49750, 49800)))
	require.Equal(t, PhaseBreakDetected, m.Context().Short.Phase)
	require.Equal(t, PhaseWatching, m.Context().Long.Phase)

	m.Send(NewBar(bar(3, 49800, 49900, 49780, 49820)))
	ctx := m.Context()
	require.Len(t, ctx.Trades, 1)
	trade := ctx.Trades[0]
	assert.Equal(t, "2024-03-15_SPY_SHORT_1", trade.ID)
	assert.Equal(t, int64(49820), trade.EntryPrice)
	assert.Equal(t, int64(50200), trade.StopLevel)
	assert.Equal(t, int64(380), trade.RValue)
	assert.Equal(t, int64(49440), trade.Target1R)
	assert.Equal(t, int64(49060), trade.Target2R)
	assert.Equal(t, int64(48680), trade.Target3R)
	assert.Equal(t, PhaseSuperseded, ctx.Long.Phase)

	m.Send(NewBar(bar(4, 49820, 49830, 48600, 48650)))
	out := m.Context().Outcomes[0]
	assert.Equal(t, domain.ResultWin3R, out.Result)
	assert.Equal(t, int64(48680), out.ExitPrice)
	assert.Equal(t, 3.0, out.RealizedR)
}

func TestMachine_ShortStopAndBreakeven(t *testing.T) {
	newShort := func() *Machine {
		m := New(DefaultConfig())
		m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
		m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))
		m.Send(NewBar(bar(1, 50000, 50050, 49850, 49900)))
		m.Send(NewBar(bar(2, 49900, 49950, 49750, 49800)))
		m.Send(NewBar(bar(3, 49800, 49900, 49780, 49820)))
		require.Equal(t, PhasePositionOpen, m.Context().Short.Phase)
		return m
	}

	m := newShort()
	m.Send(NewBar(bar(4, 49820, 50300, 49800, 50250)))
	out := m.Context().Outcomes[0]
	assert.Equal(t, domain.ResultLoss, out.Result)
	assert.Equal(t, int64(50200), out.ExitPrice)
	assert.Equal(t, -1.0, out.RealizedR)

	m = newShort()
	m.Send(NewBar(bar(4, 49820, 49820, 49400, 49400)))
	require.Equal(t, int64(49820), m.Context().Trades[0].CurrentStop)
	m.Send(NewBar(bar(5, 49400, 49900, 49400, 49850)))
	out = m.Context().Outcomes[0]
	assert.Equal(t, domain.ResultBreakevenStop, out.Result)
	assert.Equal(t, int64(49820), out.ExitPrice)
	assert.Equal(t, 0.0, out.RealizedR)
}

func TestMachine_MaxAttemptsExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBreakAttempts = 2
	m := startMonitoring(t, cfg)

	m.Send(NewBar(bar(2, 50200, 50350, 50150, 50300)))
	m.Send(NewBar(bar(3, 50300, 50300, 50100, 50150)))
	assert.Equal(t, PhaseWatching, m.Context().Long.Phase)
	assert.Equal(t, 1, m.Context().Long.BreakAttempts)
	assert.Nil(t, m.Context().Long.BreakBar)

	m.Send(NewBar(bar(4, 50150, 50300, 50100, 50250)))
	assert.Equal(t, PhaseBreakDetected, m.Context().Long.Phase)
	m.Send(NewBar(bar(5, 50250, 50250, 50000, 50100)))
	assert.Equal(t, PhaseMaxAttemptsExhausted, m.Context().Long.Phase)
	assert.Equal(t, 2, m.Context().Long.BreakAttempts)

	m.Send(NewBar(bar(6, 50100, 50500, 50100, 50450)))
	m.Send(NewBar(bar(7, 50450, 50500, 50150, 50400)))

	ctx := m.Context()
	assert.Equal(t, PhaseMaxAttemptsExhausted, ctx.Long.Phase)
	assert.Empty(t, ctx.Trades)

	var types []domain.SignalType
	var attempts []int
	for _, s := range ctx.Signals {
		types = append(types, s.Type)
		attempts = append(attempts, s.AttemptNumber)
	}
	assert.Equal(t, []domain.SignalType{
		domain.SignalBreak, domain.SignalBreakFailure,
		domain.SignalBreak, domain.SignalBreakFailure,
	}, types)
	assert.Equal(t, []int{1, 1, 2, 2}, attempts)
}

func TestMachine_SecondAttemptTradeID(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())

	m.Send(NewBar(bar(2, 50200, 50350, 50150, 50300)))
	m.Send(NewBar(bar(3, 50300, 50300, 50100, 50150)))
	m.Send(NewBar(bar(4, 50150, 50300, 50100, 50250)))
	m.Send(NewBar(bar(5, 50250, 50320, 50180, 50280)))

	ctx := m.Context()
	require.Len(t, ctx.Trades, 1)
	assert.Equal(t, "2024-03-15_SPY_LONG_2", ctx.Trades[0].ID)
}

func TestMachine_BothTracksBreakThenOneWins(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())

	// Outside bar breaks both bounds
	m.Send(NewBar(bar(2, 50000, 50350, 49800, 50000)))
	ctx := m.Context()
	assert.Equal(t, PhaseBreakDetected, ctx.Long.Phase)
	assert.Equal(t, PhaseBreakDetected, ctx.Short.Phase)

	m.Send(NewBar(bar(3, 50000, 50250, 50150, 50220)))
	ctx = m.Context()
	assert.Equal(t, PhasePositionOpen, ctx.Long.Phase)
	assert.Equal(t, PhaseSuperseded, ctx.Short.Phase)
	assert.Equal(t, domain.DirectionLong, ctx.ActiveDirection)
	assert.Equal(t, []domain.SignalType{
		domain.SignalBreak, domain.SignalBreak, domain.SignalRetest, domain.SignalConfirmation,
	}, signalTypes(ctx.Signals))
}

func TestMachine_BothTracksBreakThenShortWins(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())

	m.Send(NewBar(bar(2, 50000, 50350, 49800, 50000)))

	// Closes back inside for LONG, retests and confirms SHORT
	m.Send(NewBar(bar(3, 49950, 49950, 49800, 49850)))
	ctx := m.Context()
	assert.Equal(t, PhasePositionOpen, ctx.Short.Phase)
	assert.Equal(t, PhaseSuperseded, ctx.Long.Phase)
	assert.Equal(t, domain.DirectionShort, ctx.ActiveDirection)
	assert.Equal(t, 1, ctx.Long.BreakAttempts)

	require.Len(t, ctx.Signals, 4)
	assert.Equal(t, []domain.SignalType{
		domain.SignalBreak, domain.SignalBreak, domain.SignalRetest, domain.SignalConfirmation,
	}, signalTypes(ctx.Signals))
	assert.Equal(t, domain.DirectionLong, ctx.Signals[0].Direction)
	for _, sig := range ctx.Signals[1:] {
		assert.Equal(t, domain.DirectionShort, sig.Direction)
	}
}

func signalTypes(signals []domain.Signal) []domain.SignalType {
	out := make([]domain.SignalType, len(signals))
	for i, s := range signals {
		out[i] = s.Type
	}
	return out
}

func TestMachine_SupersededTrackStaysSilent(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)
	require.Equal(t, PhaseSuperseded, m.Context().Short.Phase)

	signalsBefore := len(m.Context().Signals)

	// Collapse through support: long stops out, short must not react
	m.Send(NewBar(bar(4, 50280, 50280, 49500, 49600)))
	m.Send(NewBar(bar(5, 49600, 49900, 49500, 49800)))
	m.Send(NewBar(bar(6, 49800, 49800, 49000, 49100)))

	ctx := m.Context()
	assert.Equal(t, PhaseSuperseded, ctx.Short.Phase)
	assert.Len(t, ctx.Signals, signalsBefore)
	assert.Len(t, ctx.Trades, 1)
	assert.Equal(t, domain.DirectionLong, ctx.ActiveDirection)
}

func TestMachine_BreakWithoutTouchStaysBreakDetected(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	m.Send(NewBar(bar(2, 50200, 50350, 50150, 50300)))

	// Low stays above resistance, close above: no guard fires
	m.Send(NewBar(bar(3, 50300, 50400, 50250, 50350)))

	ctx := m.Context()
	assert.Equal(t, PhaseBreakDetected, ctx.Long.Phase)
	assert.Len(t, ctx.Signals, 1)
}

func TestTrack_ConfirmationFromRetest(t *testing.T) {
	c := NewContext(DefaultConfig())
	c.State = StateMonitoring
	c.Date = "2024-03-15"
	c.Symbol = "SPY"
	c.Zone = &domain.DecisionZone{Resistance: 50200, Support: 49900, Spread: 300, Status: domain.ZoneDefined}
	c.Long = Track{Phase: PhaseRetestDetected, BreakAttempts: 1}
	c.Short = Track{Phase: PhaseWatching}

	n := Apply(c, NewBar(bar(4, 50200, 50300, 50200, 50260)))

	assert.Equal(t, PhasePositionOpen, n.Long.Phase)
	require.Len(t, n.Signals, 1)
	assert.Equal(t, domain.SignalConfirmation, n.Signals[0].Type)
	require.Len(t, n.Trades, 1)
	assert.Equal(t, int64(50260), n.Trades[0].EntryPrice)
	assert.Equal(t, int64(360), n.Trades[0].RValue)
}

func TestTrack_FailureFromRetest(t *testing.T) {
	c := NewContext(DefaultConfig())
	c.State = StateMonitoring
	c.Zone = &domain.DecisionZone{Resistance: 50200, Support: 49900, Spread: 300, Status: domain.ZoneDefined}
	c.Long = Track{Phase: PhaseRetestDetected, BreakAttempts: 1}
	c.Short = Track{Phase: PhaseWatching}

	n := Apply(c, NewBar(bar(4, 50200, 50200, 50000, 50100)))

	assert.Equal(t, PhaseWatching, n.Long.Phase)
	require.Len(t, n.Signals, 1)
	assert.Equal(t, domain.SignalBreakFailure, n.Signals[0].Type)
}

func TestMachine_ErrorEvent(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)

	assert.Equal(t, StateError, m.Send(Error("feed disconnected")))
	ctx := m.Context()
	assert.Equal(t, "feed disconnected", ctx.Error)

	// Final: further events change nothing
	m.Send(NewBar(bar(4, 50280, 51500, 50280, 51450)))
	m.Send(SessionEnd())
	assert.Equal(t, StateError, m.State())
	assert.Empty(t, m.Context().Outcomes)
}

func TestMachine_ErrorFromEveryActiveState(t *testing.T) {
	m := New(DefaultConfig())
	assert.Equal(t, StateError, m.Send(Error("")))
	assert.NotEmpty(t, m.Context().Error)

	m = New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
	assert.Equal(t, StateError, m.Send(Error("x")))

	m = New(DefaultConfig())
	m.Send(SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs))
	m.Send(NewBar(bar(0, 50000, 50200, 49900, 50100)))
	assert.Equal(t, StateError, m.Send(Error("x")))
}

func TestMachine_ErrorOnlyInErrorState(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)
	m.Send(NewBar(bar(4, 50280, 51500, 50280, 51450)))
	m.Send(SessionEnd())

	assert.Equal(t, StateComplete, m.State())
	assert.Empty(t, m.Context().Error)

	// COMPLETE is final
	assert.Equal(t, StateComplete, m.Send(Error("late")))
	assert.Empty(t, m.Context().Error)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)
	before := m.Context()

	after := Apply(before, NewBar(bar(4, 50280, 50700, 50280, 50700)))

	assert.Len(t, before.AllBars, 4)
	assert.Len(t, after.AllBars, 5)
	assert.Equal(t, int64(49900), before.Trades[0].CurrentStop)
	assert.Equal(t, int64(50280), after.Trades[0].CurrentStop)
	assert.False(t, before.Reached1R)
	assert.True(t, after.Reached1R)
}

func TestApply_TrackBarsAreCopies(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())

	breakBar := bar(2, 50200, 50350, 50150, 50300)
	m.Send(NewBar(breakBar))
	afterBreak := m.Context()

	retestBar := bar(3, 50300, 50320, 50200, 50280)
	m.Send(NewBar(retestBar))
	afterRetest := m.Context()

	// Hosts may reuse or rewrite their candles after delivery
	breakBar.Close = 1
	retestBar.Low = 1

	require.NotNil(t, afterBreak.Long.BreakBar)
	assert.Equal(t, int64(50300), afterBreak.Long.BreakBar.Close)
	require.NotNil(t, afterRetest.Long.RetestBar)
	assert.Equal(t, int64(50200), afterRetest.Long.RetestBar.Low)
}

func TestApply_Deterministic(t *testing.T) {
	events := []Event{
		SessionStart("2024-03-15", "SPY", sessionOpenMs+barMs),
		NewBar(bar(0, 50000, 50200, 49900, 50100)),
		NewBar(bar(1, 50100, 50250, 50050, 50200)),
		NewBar(bar(2, 50200, 50350, 50150, 50300)),
		NewBar(bar(3, 50300, 50320, 50200, 50280)),
		NewBar(bar(4, 50280, 50700, 50280, 50700)),
		NewBar(bar(5, 50700, 50700, 50200, 50250)),
		SessionEnd(),
	}

	var first Context
	for run := 0; run < 5; run++ {
		c := NewContext(DefaultConfig())
		for _, ev := range events {
			c = Apply(c, ev)
		}
		if run == 0 {
			first = c
			continue
		}
		assert.Equal(t, first.Outcomes, c.Outcomes, "run %d", run)
		assert.Equal(t, first.Signals, c.Signals, "run %d", run)
	}
}

func TestGuards_StopAndTargetsExclusive(t *testing.T) {
	m := startMonitoring(t, DefaultConfig())
	openLong(t, m)
	c := m.Context()

	for close := int64(49000); close <= 52000; close += 10 {
		b := bar(4, close, close, close, close)
		stop := isStopHit(&c, domain.DirectionLong, b)
		target := isTarget1R(&c, domain.DirectionLong, b) ||
			isTarget2R(&c, domain.DirectionLong, b) ||
			isTarget3R(&c, domain.DirectionLong, b)
		assert.False(t, stop && target, "close %d matched stop and target", close)
	}
}
