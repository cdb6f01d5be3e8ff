package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dhan-trader/internal/account"
	"dhan-trader/internal/models"
	"dhan-trader/pkg/utils"
)

// addAccountCommands adds the account view commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newSnapshotCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend and broker health",
		Example: `  dhan-trader status
  dhan-trader status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			err := app.Sync.Refresh(ctx, account.ResourceStatus)
			snap := app.Sync.Snapshot()
			market := utils.GetMarketStatus()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"connected":           snap.Connected,
					"message":             snap.StatusMessage,
					"broker_ready":        snap.BrokerReady,
					"instruments_current": snap.InstrumentsCurrent,
					"market":              market,
					"backend":             app.API.BaseURL(),
				})
			}

			output.Bold("Backend %s", app.API.BaseURL())
			if snap.Connected {
				output.Printf("  Connection:   %s\n", output.Green("connected"))
			} else {
				output.Printf("  Connection:   %s\n", output.Red("disconnected"))
			}
			if snap.StatusMessage != "" {
				output.Printf("  Message:      %s\n", snap.StatusMessage)
			}
			output.Printf("  Broker ready: %v\n", snap.BrokerReady)
			output.Printf("  Instruments:  %s\n", instrumentsLabel(snap.InstrumentsCurrent))
			output.Printf("  Market:       %s\n", output.MarketStatus(market))
			return err
		},
	}
}

func instrumentsLabel(current bool) string {
	if current {
		return "current"
	}
	return "stale"
}

func newSnapshotCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch and print the account snapshot once",
		Long: `Refresh funds, holdings, positions and orders once and print them.

A resource that fails to load is reported on its own; the rest of the
snapshot is still shown.`,
		Example: `  dhan-trader snapshot
  dhan-trader snapshot --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			refreshErr := app.Sync.RefreshNow(ctx)
			snap := app.Sync.Snapshot()

			if output.IsJSON() {
				return output.JSON(snapshotJSON(snap))
			}
			displaySnapshot(output, snap)
			return refreshErr
		},
	}
}

func snapshotJSON(snap account.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"connected":           snap.Connected,
		"broker_ready":        snap.BrokerReady,
		"instruments_current": snap.InstrumentsCurrent,
		"funds":               snap.Funds,
		"holdings":            snap.Holdings,
		"positions":           snap.Positions,
		"orders":              snap.Orders,
		"errors":              snap.Errors,
		"updated_at":          snap.UpdatedAt,
	}
}

func displaySnapshot(output *Output, snap account.Snapshot) {
	status := output.Green("connected")
	if !snap.Connected {
		status = output.Red("disconnected")
	}
	output.Bold("Account  %s  updated %s", status, snapshotAge(snap, time.Now()))
	output.Println()

	displayFunds(output, snap.Funds, snap.Errors[account.ResourceFunds])
	output.Println()
	displayHoldings(output, snap.Holdings, snap.Errors[account.ResourceHoldings])
	output.Println()
	displayPositions(output, snap.Positions, snap.Errors[account.ResourcePositions])
	output.Println()
	displayOrders(output, snap.Orders, snap.Errors[account.ResourceOrders])
}

func displayFunds(output *Output, funds *models.Funds, errMsg string) {
	output.Bold("Funds")
	if errMsg != "" {
		output.Error("  %s", errMsg)
	}
	if funds == nil {
		output.Dim("  unknown")
		return
	}
	output.Printf("  Available:    %s\n", output.Green(utils.FormatIndianCurrency(funds.AvailableBalance)))
	output.Printf("  Withdrawable: %s\n", utils.FormatIndianCurrency(funds.WithdrawableBalance))
	output.Printf("  SOD limit:    %s\n", utils.FormatIndianCurrency(funds.SODLimit))
	output.Printf("  Collateral:   %s\n", utils.FormatIndianCurrency(funds.CollateralAmount))
	if funds.UtilizedAmount != 0 {
		output.Printf("  Utilized:     %s\n", utils.FormatIndianCurrency(funds.UtilizedAmount))
	}
}

func displayHoldings(output *Output, holdings []models.Holding, errMsg string) {
	output.Bold("Holdings (%d)", len(holdings))
	if errMsg != "" {
		output.Error("  %s", errMsg)
	}
	if len(holdings) == 0 {
		return
	}

	var total, value float64
	table := NewTable(output, "Symbol", "Qty", "Avg Cost", "LTP", "Value", "P&L").AlignRight(1, 2, 3, 4, 5)
	for _, h := range holdings {
		worth := h.LastTradedPrice * float64(h.TotalQty)
		total += h.PnL
		value += worth
		table.AddRow(
			h.TradingSymbol,
			utils.FormatQuantity(h.TotalQty),
			utils.FormatIndianCurrency(h.AvgCostPrice),
			utils.FormatIndianCurrency(h.LastTradedPrice),
			utils.FormatIndianCurrency(worth),
			output.FormatPnL(h.PnL),
		)
	}
	table.SetFooter("Total", "", "", "", utils.FormatCompact(value), output.FormatPnL(total))
	table.Render()
}

func displayPositions(output *Output, positions []models.Position, errMsg string) {
	output.Bold("Positions (%d)", len(positions))
	if errMsg != "" {
		output.Error("  %s", errMsg)
	}
	if len(positions) == 0 {
		return
	}

	var total float64
	table := NewTable(output, "Symbol", "Segment", "Net Qty", "Avg", "LTP", "P&L", "Product").AlignRight(2, 3, 4, 5)
	for _, p := range positions {
		total += p.PnL
		table.AddRow(
			p.TradingSymbol,
			string(p.Segment),
			utils.FormatQuantity(p.NetQty),
			utils.FormatIndianCurrency(p.AvgPrice),
			utils.FormatIndianCurrency(p.LastTradedPrice),
			output.FormatPnL(p.PnL),
			string(p.Product),
		)
	}
	table.SetFooter("Total", "", "", "", "", output.FormatPnL(total))
	table.Render()
}

func displayOrders(output *Output, orders []models.Order, errMsg string) {
	output.Bold("Orders (%d)", len(orders))
	if errMsg != "" {
		output.Error("  %s", errMsg)
	}
	if len(orders) == 0 {
		return
	}

	table := NewTable(output, "Order ID", "Symbol", "Side", "Type", "Qty", "Price", "Status").AlignRight(4, 5)
	for _, o := range orders {
		price := "MARKET"
		if o.Price > 0 {
			price = utils.FormatIndianCurrency(o.Price)
		}
		table.AddRow(
			o.OrderID,
			o.TradingSymbol,
			output.Side(o.Side),
			string(o.Type),
			utils.FormatQuantity(o.Quantity),
			price,
			output.Status(o),
		)
	}
	table.Render()
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the account and alert feed in sync until interrupted",
		Long: `Start the account synchronizer and the alert ledger and print every
snapshot update and alert batch until interrupted.`,
		Example: `  dhan-trader watch
  dhan-trader watch --no-alerts
  dhan-trader watch --for 10m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			noAlerts, _ := cmd.Flags().GetBool("no-alerts")
			limit, _ := cmd.Flags().GetDuration("for")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if limit > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, limit)
				defer cancel()
			}

			var mu sync.Mutex
			app.Sync.SetUpdateCallback(func(snap account.Snapshot) {
				mu.Lock()
				defer mu.Unlock()
				if output.IsJSON() {
					_ = output.JSON(snapshotJSON(snap))
					return
				}
				output.Println()
				displaySnapshot(output, snap)
			})
			app.Ledger.SetBatchCallback(func(batch []models.Alert) {
				mu.Lock()
				defer mu.Unlock()
				if output.IsJSON() {
					_ = output.JSON(map[string]interface{}{"alerts": batch})
					return
				}
				output.Println()
				displayAlerts(output, "Live alerts", batch)
			})

			app.Sync.Start(ctx)
			if !noAlerts {
				app.Ledger.Start(ctx)
			}
			if !output.IsJSON() {
				output.Dim("Watching %s (Ctrl-C to stop)", app.API.BaseURL())
			}

			<-ctx.Done()
			app.Sync.Stop()
			app.Ledger.Stop()
			if !output.IsJSON() {
				output.Dim("Stopped")
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-alerts", false, "do not poll the alert feed")
	cmd.Flags().Duration("for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

// snapshotAge renders how stale a snapshot is.
func snapshotAge(snap account.Snapshot, now time.Time) string {
	if snap.UpdatedAt.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s ago", now.Sub(snap.UpdatedAt).Round(time.Second))
}
