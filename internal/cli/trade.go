package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dhan-trader/internal/account"
	"dhan-trader/internal/errors"
	"dhan-trader/internal/models"
	"dhan-trader/internal/trading"
	"dhan-trader/pkg/utils"
)

// addTradingCommands adds order and exit commands.
func addTradingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newOrderCmd(app, models.OrderSideBuy))
	rootCmd.AddCommand(newOrderCmd(app, models.OrderSideSell))
	rootCmd.AddCommand(newCancelCmd(app))
	rootCmd.AddCommand(newExitCmd(app))
}

func newOrderCmd(app *App, side models.OrderSide) *cobra.Command {
	verb := strings.ToLower(string(side))
	cmd := &cobra.Command{
		Use:   verb + " <symbol> <quantity>",
		Short: fmt.Sprintf("Place a %s order", verb),
		Long: fmt.Sprintf(`Place a %s order through the backend.

The security id is looked up from the symbol and segment unless
--security-id is given. With --lots the backend derives the quantity from
the contract's lot size.`, verb),
		Example: fmt.Sprintf(`  dhan-trader %[1]s RELIANCE 10
  dhan-trader %[1]s INFY 5 --type LIMIT --price 1500
  dhan-trader %[1]s NIFTY-Jun2024-22500-CE 0 --lots 2 --segment NSE_FNO --product INTRADAY`, verb),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			segment, err := segmentFlag(cmd, app)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				verr := errors.NewValidationError("quantity", args[1], "Quantity must be a whole number")
				output.Error("%s", verr.Message)
				return verr
			}

			draft := orderDraftFromFlags(cmd, app)
			draft.Side = side
			draft.Quantity = qty
			securityID, _ := cmd.Flags().GetString("security-id")
			draft.Instrument = &models.Instrument{
				TradingSymbol: strings.ToUpper(strings.TrimSpace(args[0])),
				SecurityID:    strings.TrimSpace(securityID),
				Segment:       segment,
			}
			if !output.IsJSON() {
				output.Bold("Order Preview")
				output.Printf("  Symbol:   %s (%s)\n", draft.Instrument.TradingSymbol, segment)
				output.Printf("  Side:     %s\n", output.Side(side))
				if draft.Lots > 0 {
					output.Printf("  Lots:     %d\n", draft.Lots)
				} else {
					output.Printf("  Quantity: %d\n", draft.Quantity)
				}
				output.Printf("  Type:     %s\n", draft.Type)
				if draft.Type == models.OrderTypeLimit {
					output.Printf("  Price:    %s\n", utils.FormatIndianCurrency(draft.Price))
				}
				output.Printf("  Product:  %s\n", draft.Product)
				output.Println()
			}

			out := app.Orchestrator.PlaceOrder(ctx, draft)
			return reportOutcome(output, out)
		},
	}

	cmd.Flags().StringP("segment", "s", "", "Segment (NSE_EQ, BSE_EQ, NSE_FNO, MCX)")
	cmd.Flags().String("security-id", "", "Security id (skips the symbol lookup)")
	cmd.Flags().String("type", "", "Order type (MARKET, LIMIT)")
	cmd.Flags().Float64P("price", "p", 0, "Limit price")
	cmd.Flags().String("product", "", "Product type (DELIVERY, CNC, INTRADAY)")
	cmd.Flags().String("validity", "", "Validity (DAY, IOC)")
	cmd.Flags().Int("lots", 0, "Number of lots for derivatives")
	return cmd
}

// orderDraftFromFlags reads the shared order flags over the configured
// defaults. A price without --type implies LIMIT.
func orderDraftFromFlags(cmd *cobra.Command, app *App) trading.OrderDraft {
	orderType, _ := cmd.Flags().GetString("type")
	price, _ := cmd.Flags().GetFloat64("price")
	product, _ := cmd.Flags().GetString("product")
	validity, _ := cmd.Flags().GetString("validity")
	lots, _ := cmd.Flags().GetInt("lots")

	if orderType == "" {
		orderType = app.Config.Trading.DefaultOrderType
		if price > 0 {
			orderType = string(models.OrderTypeLimit)
		}
	}
	if product == "" {
		product = app.Config.Trading.DefaultProduct
	}
	if validity == "" {
		validity = app.Config.Trading.DefaultValidity
	}

	return trading.OrderDraft{
		Type:     models.OrderType(strings.ToUpper(orderType)),
		Price:    price,
		Product:  models.ProductType(strings.ToUpper(product)),
		Validity: models.Validity(strings.ToUpper(validity)),
		Lots:     lots,
	}
}

// reportOutcome prints a workflow outcome and returns its error.
func reportOutcome(output *Output, out trading.Outcome) error {
	if output.IsJSON() {
		errText := ""
		if out.Err != nil {
			errText = out.Err.Error()
		}
		if err := output.JSON(map[string]interface{}{
			"state":       out.State,
			"transitions": out.Transitions,
			"intent_id":   out.IntentID,
			"message":     out.Message,
			"request_id":  out.RequestID,
			"notice":      out.Notice,
			"order_id":    out.OrderID,
			"error":       errText,
		}); err != nil {
			return err
		}
		return out.Err
	}

	switch out.State {
	case trading.StateSucceeded:
		output.Success("✓ %s", out.Message)
		if out.OrderID != "" {
			output.Printf("  Order ID:   %s\n", out.OrderID)
		}
	case trading.StateFailed:
		output.Error("✗ %s", out.Message)
	default:
		if out.Message != "" {
			output.Dim("%s", out.Message)
		}
		return out.Err
	}
	if out.RequestID != "" {
		output.Printf("  Request ID: %s\n", out.RequestID)
	}
	if out.Notice != "" {
		output.Warning("⚠ %s", out.Notice)
	}
	return out.Err
}

func newCancelCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [order-id]",
		Short: "Cancel an open order",
		Long: `Cancel an open order. Without an order id the open orders are listed.

You are asked to confirm unless --yes is given or confirmation is disabled
in the configuration.`,
		Example: `  dhan-trader cancel
  dhan-trader cancel 112111182198 --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			if len(args) == 0 {
				err := app.Sync.Refresh(ctx, account.ResourceOrders)
				snap := app.Sync.Snapshot()
				open := snap.OpenOrders()
				if output.IsJSON() {
					return output.JSON(open)
				}
				if len(open) == 0 {
					output.Info("No open orders")
					return err
				}
				displayOrders(output, open, snap.Errors[account.ResourceOrders])
				output.Dim("Cancel one with: dhan-trader cancel <order-id>")
				return err
			}

			out := app.Orchestrator.CancelOrder(ctx, args[0])
			return reportOutcome(output, out)
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newExitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exit",
		Short: "Square off a holding or position",
		Long: `Square off a holding or position with an opposite order.

The exit is drafted from the current account snapshot; --qty, --type and
--price adjust the draft before it is sent.`,
	}
	cmd.AddCommand(newExitHoldingCmd(app))
	cmd.AddCommand(newExitPositionCmd(app))
	return cmd
}

func newExitHoldingCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "holding <symbol>",
		Short:   "Sell a delivery holding",
		Example: `  dhan-trader exit holding INFY --qty 5 --yes`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := app.Sync.Refresh(ctx, account.ResourceHoldings); err != nil {
				output.Error("Could not load holdings: %s", app.Sync.Snapshot().Errors[account.ResourceHoldings])
				return err
			}

			var holding *models.Holding
			for _, h := range app.Sync.Snapshot().Holdings {
				if strings.EqualFold(h.TradingSymbol, symbol) {
					h := h
					holding = &h
					break
				}
			}
			if holding == nil {
				output.Error("No holding found for %s", symbol)
				return fmt.Errorf("no holding for %s", symbol)
			}

			dialog := app.Orchestrator.NewExitDialog()
			dialog.OpenHolding(*holding)
			return runExitDialog(ctx, cmd, output, dialog)
		},
	}
	addExitFlags(cmd)
	return cmd
}

func newExitPositionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "position <symbol>",
		Short:   "Flatten an open position",
		Example: `  dhan-trader exit position SBIN --yes`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			product, _ := cmd.Flags().GetString("product")
			if err := app.Sync.Refresh(ctx, account.ResourcePositions); err != nil {
				output.Error("Could not load positions: %s", app.Sync.Snapshot().Errors[account.ResourcePositions])
				return err
			}

			var position *models.Position
			for _, p := range app.Sync.Snapshot().Positions {
				if p.NetQty == 0 || !strings.EqualFold(p.TradingSymbol, symbol) {
					continue
				}
				if product != "" && !strings.EqualFold(string(p.Product), product) {
					continue
				}
				p := p
				position = &p
				break
			}
			if position == nil {
				output.Error("No open position found for %s", symbol)
				return fmt.Errorf("no open position for %s", symbol)
			}

			dialog := app.Orchestrator.NewExitDialog()
			dialog.OpenPosition(*position)
			return runExitDialog(ctx, cmd, output, dialog)
		},
	}
	addExitFlags(cmd)
	cmd.Flags().String("product", "", "Only match positions with this product type")
	return cmd
}

func addExitFlags(cmd *cobra.Command) {
	cmd.Flags().Int("qty", 0, "Quantity to exit (default: the whole quantity)")
	cmd.Flags().String("type", "", "Order type (MARKET, LIMIT)")
	cmd.Flags().Float64P("price", "p", 0, "Limit price")
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

// runExitDialog applies flag edits to the open draft, shows it, and confirms
// or dismisses it.
func runExitDialog(ctx context.Context, cmd *cobra.Command, output *Output, dialog *trading.ExitDialog) error {
	qty, _ := cmd.Flags().GetInt("qty")
	orderType, _ := cmd.Flags().GetString("type")
	price, _ := cmd.Flags().GetFloat64("price")
	yes, _ := cmd.Flags().GetBool("yes")

	dialog.Update(func(i *models.ExitIntent) {
		if qty > 0 {
			i.Quantity = qty
		}
		if price > 0 {
			i.Price = price
			i.Type = models.OrderTypeLimit
		}
		if orderType != "" {
			i.Type = models.OrderType(strings.ToUpper(orderType))
		}
	})

	draft, _ := dialog.Draft()
	prompt := fmt.Sprintf("%s %d %s (%s, %s, %s)?", draft.Side, draft.Quantity, draft.Symbol, draft.Segment, draft.Type, draft.Product)
	if !output.IsJSON() {
		output.Bold("Exit %s", draft.Symbol)
		output.Printf("  Side:     %s\n", output.Side(draft.Side))
		output.Printf("  Quantity: %d\n", draft.Quantity)
		output.Printf("  Type:     %s\n", draft.Type)
		if draft.Type == models.OrderTypeLimit {
			output.Printf("  Price:    %s\n", utils.FormatIndianCurrency(draft.Price))
		}
		output.Printf("  Product:  %s\n", draft.Product)
		output.Println()
	}

	if !yes && !askYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt) {
		dialog.Dismiss()
		output.Dim("Exit dismissed")
		return nil
	}
	return reportOutcome(output, dialog.Confirm(ctx))
}
