package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/internal/weather"
	"github.com/spf13/cobra"
)

var (
	marketCity   string
	marketState  string
	marketSeason string
	marketCrop   string

	irrigationCrop        string
	irrigationSoil        string
	irrigationLastWatered string

	placeName string
	latitude  float64
	longitude float64
)

var errNoLocation = errors.New("either --place or both --lat and --lon are required")

// failed prints the farmer-facing message and returns err so the exit code is non-zero.
func failed(w io.Writer, err error) error {
	fmt.Fprintln(w, llmtext.UserMessage(err))
	return err
}

func writeSource(w io.Writer, res freshness.Result, now time.Time) {
	switch res.Source {
	case freshness.SourceCache:
		fmt.Fprintf(w, "\n(cached %s ago)\n", now.Sub(res.LastUpdated).Round(time.Minute))
	case freshness.SourceStale:
		fmt.Fprintf(w, "\n(offline: showing data from %s)\n", res.LastUpdated.Local().Format("02 Jan 15:04"))
	}
}

// coords returns the --lat/--lon pair when both were given.
func coords(cmd *cobra.Command) (*float64, *float64, error) {
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	switch {
	case latSet && lonSet:
		lat, lon := latitude, longitude
		return &lat, &lon, nil
	case latSet || lonSet:
		return nil, nil, errNoLocation
	}
	return nil, nil, nil
}

func addLocationFlags(c *cobra.Command) {
	c.Flags().StringVar(&placeName, "place", "", "place name, resolved with Open-Meteo geocoding")
	c.Flags().Float64Var(&latitude, "lat", 0, "latitude")
	c.Flags().Float64Var(&longitude, "lon", 0, "longitude")
}

func addRefreshFlag(c *cobra.Command) {
	c.Flags().BoolVar(&refreshFlag, "refresh", false, "ignore the cache and ask the upstream service")
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Estimated mandi prices and selling advice for a region",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Market.Prices(ctx, advisor.MarketQuery{
				City:   marketCity,
				State:  marketState,
				Season: marketSeason,
				Crop:   marketCrop,
			}, refreshFlag)
			out := cmd.OutOrStdout()
			if err != nil {
				return failed(out, err)
			}
			fmt.Fprintln(out, llmtext.ToPlainText(advisor.FormatMarketBoard(advisor.ParseMarketBoard(res.Payload))))
			writeSource(out, res, a.Now())
			return nil
		})
	},
}

var schemesCmd = &cobra.Command{
	Use:   "schemes",
	Short: "Government schemes for farmers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			schemes, res, err := a.Schemes.Schemes(ctx, refreshFlag)
			out := cmd.OutOrStdout()
			if err != nil {
				return failed(out, err)
			}
			for _, s := range schemes {
				fmt.Fprintf(out, "%s %s\n", s.IconEmoji, s.Title)
				fmt.Fprintf(out, "   %s\n", s.Description)
				if s.Benefits != "" {
					fmt.Fprintf(out, "   Benefits: %s\n", s.Benefits)
				}
				if s.Eligibility != "" {
					fmt.Fprintf(out, "   Eligibility: %s\n", s.Eligibility)
				}
				if s.URL != "" {
					fmt.Fprintf(out, "   %s\n", s.URL)
				}
			}
			writeSource(out, res, a.Now())
			return nil
		})
	},
}

var irrigationCmd = &cobra.Command{
	Use:   "irrigation",
	Short: "Whether to water today, given crop, soil and weather",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := coords(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			if lat == nil && placeName != "" {
				place, err := a.Locate(ctx, placeName, nil, nil)
				if err != nil {
					return failed(out, err)
				}
				lat, lon = &place.Latitude, &place.Longitude
			}
			res, err := a.IrrigationAdvice(ctx, advisor.IrrigationQuery{
				Crop:        irrigationCrop,
				Soil:        irrigationSoil,
				LastWatered: irrigationLastWatered,
			}, lat, lon, refreshFlag)
			if err != nil {
				return failed(out, err)
			}
			fmt.Fprintln(out, llmtext.ToPlainText(res.Payload))
			writeSource(out, res, a.Now())
			return nil
		})
	},
}

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Current weather and the daily forecast",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := coords(cmd)
		if err != nil {
			return err
		}
		if lat == nil && strings.TrimSpace(placeName) == "" {
			return errNoLocation
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			place, err := a.Locate(ctx, placeName, lat, lon)
			if err != nil {
				return failed(out, err)
			}
			forecast, res, ferr := a.Forecasts.Forecast(ctx, place.Latitude, place.Longitude, refreshFlag)
			if ferr != nil {
				return failed(out, ferr)
			}
			writeForecast(out, place, forecast)
			writeSource(out, res, a.Now())
			return nil
		})
	},
}

func writeForecast(w io.Writer, place weather.Place, f weather.Forecast) {
	if place.Name != "" {
		fmt.Fprintln(w, place.String())
	}
	_, emoji := weather.Describe(f.Current.WeatherCode)
	fmt.Fprintf(w, "%s %s\n\n", emoji, f.Current.Summary())
	for _, d := range f.Days() {
		fmt.Fprintf(w, "%s  %s %-14s %5.1f° / %5.1f°\n", d.Date, d.Emoji, d.Description, d.TempMax, d.TempMin)
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Weather, market prices and schemes in one view",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lon, err := coords(cmd)
		if err != nil {
			return err
		}
		if lat == nil && strings.TrimSpace(placeName) == "" {
			return errNoLocation
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := cmd.OutOrStdout()
			d, err := a.Dashboard(ctx, app.DashboardQuery{
				Place:     placeName,
				Latitude:  lat,
				Longitude: lon,
				City:      marketCity,
				State:     marketState,
				Season:    marketSeason,
			}, refreshFlag)
			if err != nil {
				return failed(out, err)
			}

			fmt.Fprintln(out, "== Weather ==")
			if d.Weather.Error != "" {
				fmt.Fprintln(out, d.Weather.Error)
			} else {
				writeForecast(out, d.Place, d.Weather.Data)
			}
			fmt.Fprintln(out, "\n== Market ==")
			if d.Market.Error != "" {
				fmt.Fprintln(out, d.Market.Error)
			} else {
				fmt.Fprintln(out, llmtext.ToPlainText(advisor.FormatMarketBoard(d.Market.Data)))
			}
			fmt.Fprintln(out, "\n== Schemes ==")
			if d.Schemes.Error != "" {
				fmt.Fprintln(out, d.Schemes.Error)
			}
			for _, s := range d.Schemes.Data {
				fmt.Fprintf(out, "%s %s\n", s.IconEmoji, s.Title)
			}
			return nil
		})
	},
}

func init() {
	marketCmd.Flags().StringVar(&marketCity, "city", "", "city or district")
	marketCmd.Flags().StringVar(&marketState, "state", "", "state")
	marketCmd.Flags().StringVar(&marketSeason, "season", advisor.DefaultSeason, "season, e.g. Kharif or Rabi")
	marketCmd.Flags().StringVar(&marketCrop, "crop", "", "narrow the estimate to one crop")
	addRefreshFlag(marketCmd)

	addRefreshFlag(schemesCmd)

	irrigationCmd.Flags().StringVar(&irrigationCrop, "crop", "", "crop being grown")
	irrigationCmd.Flags().StringVar(&irrigationSoil, "soil", "", "soil type, e.g. Loamy or Clay")
	irrigationCmd.Flags().StringVar(&irrigationLastWatered, "last-watered", "", "when the field was last watered, e.g. \"3 days ago\"")
	addLocationFlags(irrigationCmd)
	addRefreshFlag(irrigationCmd)

	addLocationFlags(weatherCmd)
	addRefreshFlag(weatherCmd)

	addLocationFlags(dashboardCmd)
	dashboardCmd.Flags().StringVar(&marketCity, "city", "", "city for market prices (defaults to the place name)")
	dashboardCmd.Flags().StringVar(&marketState, "state", "", "state for market prices (defaults to the place's state)")
	dashboardCmd.Flags().StringVar(&marketSeason, "season", advisor.DefaultSeason, "season for market prices")
	addRefreshFlag(dashboardCmd)
}
