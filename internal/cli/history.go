package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/intensity"
	"github.com/vburojevic/rounds/internal/output"
	"github.com/vburojevic/rounds/internal/records"
)

// HistoryCmd lists finished sessions from the local record store
type HistoryCmd struct {
	Limit int `short:"n" default:"20" help:"Maximum sessions to list (0 for all)"`
}

// StatsOutput is the NDJSON totals line that follows the records.
type StatsOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	records.Stats
}

// Run executes the history command
func (c *HistoryCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if globals.Config.Records.Driver == "supabase" {
		return outputErrorCommon(globals, "UNSUPPORTED", "history reads the local record store", "set records.driver to sqlite or postgres")
	}
	store, err := openRecordStore(ctx, globals.Config.Records)
	if err != nil {
		return outputErrorCommon(globals, "RECORDS_UNAVAILABLE", err.Error(), "check records.driver and records.db_path or records.dsn")
	}
	defer store.Close()

	list, err := store.ListFinished(ctx, c.Limit)
	if err != nil {
		return outputErrorCommon(globals, "QUERY_FAILED", err.Error())
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return outputErrorCommon(globals, "QUERY_FAILED", err.Error())
	}

	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, rec := range list {
			if err := w.WriteRecord(rec); err != nil {
				return err
			}
		}
		return w.WriteJSON(StatsOutput{Type: "stats", SchemaVersion: output.SchemaVersion, Stats: stats})
	}
	return c.outputText(globals, list, stats)
}

func (c *HistoryCmd) outputText(globals *Globals, list []*domain.FinishedSession, stats records.Stats) error {
	if len(list) == 0 {
		fmt.Fprintln(globals.Stdout, "No finished sessions yet.")
		return nil
	}
	table := output.Table(globals.Stdout, []string{"Finished", "Minutes", "Rounds", "Avg", "Intensity"})
	rows := lo.Map(list, func(rec *domain.FinishedSession, _ int) []string {
		return []string{
			rec.FinishedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(rec.DurationMinutes),
			fmt.Sprintf("%d/%d", rec.RoundsCompleted, rec.RoundCount),
			strconv.FormatFloat(rec.AverageIntensity, 'f', 1, 64),
			intensity.Line(rec.IntensityByRound),
		}
	})
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(globals.Stdout, "\n%d sessions, %d minutes, %d rounds, average intensity %.1f\n",
		stats.Sessions, stats.Minutes, stats.Rounds, stats.AverageIntensity)
	return nil
}
