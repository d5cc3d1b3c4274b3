package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"tradeSentinel/internal/domain"
	"tradeSentinel/internal/report"
)

func WriteBarsToCSV(bars []*domain.DailyBar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"date", "ticker", "open", "high", "low", "close", "volume"})

	for _, b := range bars {
		writer.Write([]string{
			b.Date.Format("2006-01-02"),
			b.Ticker,
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			strconv.FormatInt(b.Volume, 10),
		})
	}
	return writer.Error()
}

func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{
		"seq_num", "ticker", "status", "units", "entry_price", "stop_loss", "take_profit",
		"date_planned", "date_actual", "exit_date", "exit_type", "exit_price", "realized_pnl",
	})

	for _, t := range trades {
		seq := ""
		if t.SeqNum != nil {
			seq = strconv.FormatInt(*t.SeqNum, 10)
		}
		exitType := ""
		if t.ExitType != nil {
			exitType = string(*t.ExitType)
		}
		exitPrice := ""
		if t.ExitPrice != nil {
			exitPrice = t.ExitPrice.String()
		}
		pnl := ""
		if t.Status == domain.StatusClosed {
			pnl = report.RealizedPnL(t).String()
		}
		writer.Write([]string{
			seq,
			t.Ticker,
			string(t.Status),
			strconv.FormatInt(t.Units, 10),
			t.EntryPrice.String(),
			t.StopLoss.String(),
			t.TakeProfit.String(),
			t.DatePlanned.Format("2006-01-02"),
			formatDate(t.DateActual),
			formatDate(t.ExitDate),
			exitType,
			exitPrice,
			pnl,
		})
	}
	return writer.Error()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
