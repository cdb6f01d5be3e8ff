package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dhan-trader/internal/backend"
	"dhan-trader/internal/models"
)

// addAlertCommands adds the webhook alert commands.
func addAlertCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAlertsCmd(app))
}

func newAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show recent webhook trade alerts",
		Long: `Poll the backend's webhook alert feed once and print it.

With --live only alerts still inside their display window are shown. Use
'dhan-trader watch' to follow the feed continuously.`,
		Example: `  dhan-trader alerts
  dhan-trader alerts --live --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			live, _ := cmd.Flags().GetBool("live")
			if err := app.Ledger.Poll(ctx); err != nil {
				output.Error("Alert feed unavailable: %s", backend.Describe(nil, err))
				return err
			}

			alerts := app.Ledger.LogView()
			title := "Alert log"
			if live {
				alerts = app.Ledger.LiveView()
				title = "Live alerts"
			}

			if output.IsJSON() {
				return output.JSON(alerts)
			}
			if len(alerts) == 0 {
				output.Info("No alerts")
				return nil
			}
			displayAlerts(output, title, alerts)
			output.Dim("polled at %s", app.Ledger.LastPoll().Format("15:04:05"))
			return nil
		},
	}

	cmd.Flags().Bool("live", false, "only alerts inside the display window")
	return cmd
}

func displayAlerts(output *Output, title string, alerts []models.Alert) {
	output.Bold("%s (%d)", title, len(alerts))
	if len(alerts) == 0 {
		return
	}

	table := NewTable(output, "Time", "Index", "Strike", "Side", "Qty", "Instrument", "Result", "Message").
		AlignRight(2, 4).
		Truncate(5, 28).
		Truncate(7, 48)
	for _, a := range alerts {
		ts := "-"
		if a.Timestamp != nil {
			ts = a.Timestamp.Format("15:04:05")
		}
		strike := fmt.Sprintf("%g %s", a.Trade.Strike, a.Trade.OptionType)
		table.AddRow(
			ts,
			a.Trade.Index,
			strike,
			output.Side(models.OrderSide(a.Trade.Side)),
			fmt.Sprintf("%d", a.Quantity),
			a.Instrument.TradingSymbol,
			alertStatus(output, a.Response.Status),
			a.Response.Message,
		)
	}
	table.Render()
}

func alertStatus(output *Output, status string) string {
	switch status {
	case "success", "ok":
		return output.Green(status)
	case "":
		return "-"
	}
	return output.Red(status)
}
