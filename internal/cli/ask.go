package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/spf13/cobra"
)

var (
	priceCrop     string
	priceCurrent  float64
	priceLastWeek float64

	imagePath        string
	diagnoseQuestion string
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the farming assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			answer, err := a.Assistant.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return failed(out, err)
			}
			fmt.Fprintln(out, llmtext.ToPlainText(answer))
			return nil
		})
	},
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Sell-or-wait advice from this week's and last week's price",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			q := advisor.PriceQuery{Crop: priceCrop, CurrentPrice: priceCurrent, LastWeekPrice: priceLastWeek}
			d, err := a.Prices.Analyze(ctx, q)
			if err != nil {
				return failed(out, err)
			}

			change, percent := q.Change()
			fmt.Fprintf(out, "%s: ₹%.2f → ₹%.2f (%+.2f, %+.1f%%)\n\n", q.Crop, q.LastWeekPrice, q.CurrentPrice, change, percent)
			advice, ok := d.Value()
			if !ok {
				fmt.Fprintln(out, llmtext.ToPlainText(d.Raw()))
				return nil
			}
			fmt.Fprintf(out, "Recommendation: %s (%s confidence)\n", advice.Recommendation, advice.Confidence)
			fmt.Fprintf(out, "Trend: %s\n", advice.Trend)
			fmt.Fprintf(out, "Why: %s\n", advice.Reasoning)
			fmt.Fprintf(out, "Next step: %s\n", advice.Action)
			return nil
		})
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Identify a crop disease from a photo",
	RunE: func(cmd *cobra.Command, args []string) error {
		image, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		mimeType := http.DetectContentType(image)
		if !strings.HasPrefix(mimeType, "image/") {
			return fmt.Errorf("%s is not an image (%s)", filepath.Base(imagePath), mimeType)
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			d, err := a.Assistant.Diagnose(ctx, image, mimeType, diagnoseQuestion)
			if err != nil {
				return failed(out, err)
			}
			diag, ok := d.Value()
			if !ok {
				fmt.Fprintln(out, llmtext.ToPlainText(d.Raw()))
				return nil
			}
			fmt.Fprintf(out, "Analysis: %s\n", diag.Analysis)
			if diag.Confidence != "" {
				fmt.Fprintf(out, "Confidence: %s\n", diag.Confidence)
			}
			if diag.Remedies != "" {
				fmt.Fprintf(out, "Remedies:\n%s\n", diag.Remedies)
			}
			return nil
		})
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceCrop, "crop", "", "crop name")
	priceCmd.Flags().Float64Var(&priceCurrent, "current", 0, "current price in ₹/quintal")
	priceCmd.Flags().Float64Var(&priceLastWeek, "last-week", 0, "last week's price in ₹/quintal")

	diagnoseCmd.Flags().StringVar(&imagePath, "image", "", "path to a photo of the affected plant")
	diagnoseCmd.Flags().StringVar(&diagnoseQuestion, "question", "", "optional question about the photo")
	_ = diagnoseCmd.MarkFlagRequired("image")
}
