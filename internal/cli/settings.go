package cmd

import (
	"context"
	"fmt"

	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/settings"
	"github.com/spf13/cobra"
)

const testPrompt = "Reply with the single word OK."

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Saved settings such as the Gemini API key",
}

var settingsSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Save a Gemini API key; it overrides the configured one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Settings.SaveAPIKey(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API Key Saved!")
			return nil
		})
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			saved, err := a.Settings.APIKey(ctx)
			if err != nil {
				return err
			}
			cfg := a.Config()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Saved API key:      %s\n", settings.MaskKey(saved))
			fmt.Fprintf(out, "Configured API key: %s\n", settings.MaskKey(cfg.GeminiAPIKey()))
			fmt.Fprintf(out, "Model:              %s\n", cfg.GeminiModel())
			fmt.Fprintf(out, "Cache backend:      %s\n", cfg.CacheBackend())
			fmt.Fprintf(out, "TTL market/schemes/irrigation/weather: %s / %s / %s / %s\n",
				cfg.MarketTTL(), cfg.SchemesTTL(), cfg.IrrigationTTL(), cfg.WeatherTTL())
			return nil
		})
	},
}

var settingsTestKeyCmd = &cobra.Command{
	Use:   "test-key",
	Short: "Check that the effective API key is accepted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			if _, err := a.Gemini.GenerateText(ctx, testPrompt); err != nil {
				return failed(out, err)
			}
			fmt.Fprintln(out, "API key works")
			return nil
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsSetKeyCmd, settingsShowCmd, settingsTestKeyCmd)
}

