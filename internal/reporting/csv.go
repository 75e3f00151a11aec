package reporting

import (
	"fmt"
	"strings"
)

// RenderTradesCSV renders trade rows as CSV string. Prices are dollars.
func RenderTradesCSV(rows []TradeRow) string {
	var sb strings.Builder

	sb.WriteString("date,trade_id,direction,entry_price,stop_level,exit_price,exit_timestamp_ms,")
	sb.WriteString("result,realized_r,max_favorable_r,max_adverse_r,bars_held\n")

	for _, t := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%d,%s,%.2f,%.2f,%.2f,%d\n",
			t.Date,
			t.TradeID,
			t.Direction,
			dollars(t.EntryPrice),
			dollars(t.StopLevel),
			dollars(t.ExitPrice),
			t.ExitTimestampMs,
			t.Result,
			t.RealizedR,
			t.MaxFavorableR,
			t.MaxAdverseR,
			t.BarsHeld,
		))
	}

	return sb.String()
}
