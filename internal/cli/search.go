package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dhan-trader/internal/errors"
	"dhan-trader/internal/instrument"
	"dhan-trader/internal/models"
)

// addInstrumentCommands adds instrument search and lookup commands.
func addInstrumentCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newResolveCmd(app))
}

// segmentFlag reads --segment, falling back to the configured default.
func segmentFlag(cmd *cobra.Command, app *App) (models.Segment, error) {
	raw, _ := cmd.Flags().GetString("segment")
	if raw == "" {
		raw = app.Config.Search.DefaultSegment
	}
	seg, ok := models.ParseSegment(raw)
	if !ok {
		return "", errors.NewValidationError("segment", raw, fmt.Sprintf("unknown segment %q", raw))
	}
	return seg, nil
}

func newSearchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the instrument master",
		Example: `  dhan-trader search RELI
  dhan-trader search "NIFTY 22500" --segment NSE_FNO`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			segment, err := segmentFlag(cmd, app)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			query := strings.Join(args, " ")
			results, err := app.Resolver.Search(ctx, query, segment)
			if err != nil {
				output.Error("Search failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			if len(results) == 0 {
				if len([]rune(strings.TrimSpace(query))) < app.Config.Search.MinLength {
					output.Dim("Type at least %d characters to search", app.Config.Search.MinLength)
				} else {
					output.Info("No instruments match %q in %s", query, segment)
				}
				return nil
			}

			table := NewTable(output, "Symbol", "Security ID", "Segment", "Lot").AlignRight(3)
			for _, inst := range results {
				table.AddRow(instrument.Label(inst), inst.SecurityID, string(inst.Segment), fmt.Sprintf("%d", inst.LotSize))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("segment", "s", "", "Segment (NSE_EQ, BSE_EQ, NSE_FNO, MCX)")
	return cmd
}

func newResolveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <symbol>",
		Short: "Look up the security id of a symbol",
		Example: `  dhan-trader resolve RELIANCE
  dhan-trader resolve GOLDM --segment MCX`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			segment, err := segmentFlag(cmd, app)
			if err != nil {
				output.Error("%v", err)
				return err
			}

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			id, err := app.Resolver.ResolveSecurityID(ctx, symbol, segment)
			if err != nil {
				var rerr *errors.ResolutionError
				if errors.As(err, &rerr) {
					output.Error("%s", resolutionText(rerr))
				} else {
					output.Error("Resolve failed: %v", err)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"symbol": symbol, "segment": string(segment), "security_id": id})
			}
			output.Printf("%s %s → %s\n", symbol, segment, output.Green(id))
			return nil
		},
	}

	cmd.Flags().StringP("segment", "s", "", "Segment (NSE_EQ, BSE_EQ, NSE_FNO, MCX)")
	return cmd
}

func resolutionText(rerr *errors.ResolutionError) string {
	msg := rerr.Message
	if msg == "" {
		msg = fmt.Sprintf("No instrument for %s (%s)", rerr.Symbol, rerr.Segment)
	}
	if len(rerr.Suggestions) > 0 {
		msg += "\n  Did you mean: " + strings.Join(rerr.Suggestions, ", ")
	}
	return msg
}
