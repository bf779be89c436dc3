package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/build"
	"github.com/rohmanhakim/krishield/internal/community"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/internal/weather"
)

const maxImageBytes = 8 << 20

type feedResponse struct {
	Payload     string    `json:"payload"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"lastUpdated"`
	Parsed      any       `json:"parsed,omitempty"`
}

func newFeedResponse(res freshness.Result, parsed any) feedResponse {
	return feedResponse{
		Payload:     res.Payload,
		Source:      string(res.Source),
		LastUpdated: res.LastUpdated,
		Parsed:      parsed,
	}
}

// errorResponse maps input errors to 400, unknown communities to 404 and
// everything else to 502.
func errorResponse(c echo.Context, err error) error {
	var advErr *advisor.AdvisorError
	var weatherErr *weather.WeatherError
	switch {
	case errors.As(err, &advErr) && advErr.Cause == advisor.ErrCauseInvalidInput,
		errors.Is(err, community.ErrEmptyName),
		errors.Is(err, community.ErrEmptyMessage):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": llmtext.UserMessage(err)})
	case errors.Is(err, community.ErrCommunityNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Community not found"})
	case errors.As(err, &weatherErr) && weatherErr.Cause == weather.ErrCausePlaceNotFound:
		return c.JSON(http.StatusNotFound, map[string]string{"error": llmtext.UserMessage(err)})
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": llmtext.UserMessage(err)})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func refresh(c echo.Context) bool {
	v, _ := strconv.ParseBool(c.QueryParam("refresh"))
	return v
}

// coordinates reads the lat and lon query parameters. Both or neither must be set.
func coordinates(c echo.Context) (*float64, *float64, error) {
	latRaw, lonRaw := c.QueryParam("lat"), c.QueryParam("lon")
	if latRaw == "" && lonRaw == "" {
		return nil, nil, nil
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, nil, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return nil, nil, errors.New("lon must be a number")
	}
	return &lat, &lon, nil
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": build.FullVersion(),
		"backend": string(s.app.Config().CacheBackend()),
	})
}

func (s *Server) dashboardHandler(c echo.Context) error {
	lat, lon, err := coordinates(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if lat == nil && strings.TrimSpace(c.QueryParam("place")) == "" {
		return badRequest(c, "place or lat and lon are required")
	}
	d, err := s.app.Dashboard(c.Request().Context(), app.DashboardQuery{
		Place:     c.QueryParam("place"),
		Latitude:  lat,
		Longitude: lon,
		City:      c.QueryParam("city"),
		State:     c.QueryParam("state"),
		Season:    c.QueryParam("season"),
	}, refresh(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) marketHandler(c echo.Context) error {
	res, err := s.app.Market.Prices(c.Request().Context(), advisor.MarketQuery{
		City:   c.QueryParam("city"),
		State:  c.QueryParam("state"),
		Season: c.QueryParam("season"),
		Crop:   c.QueryParam("crop"),
	}, refresh(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, newFeedResponse(res, advisor.ParseMarketBoard(res.Payload)))
}

func (s *Server) schemesHandler(c echo.Context) error {
	schemes, res, err := s.app.Schemes.Schemes(c.Request().Context(), refresh(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, newFeedResponse(res, schemes))
}

type irrigationRequest struct {
	Crop        string   `json:"crop"`
	Soil        string   `json:"soil"`
	LastWatered string   `json:"lastWatered"`
	Weather     string   `json:"weather"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (s *Server) irrigationHandler(c echo.Context) error {
	var req irrigationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	res, err := s.app.IrrigationAdvice(c.Request().Context(), advisor.IrrigationQuery{
		Crop:        req.Crop,
		Soil:        req.Soil,
		LastWatered: req.LastWatered,
		Weather:     req.Weather,
	}, req.Latitude, req.Longitude, refresh(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, newFeedResponse(res, nil))
}

func (s *Server) weatherHandler(c echo.Context) error {
	lat, lon, err := coordinates(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if lat == nil && strings.TrimSpace(c.QueryParam("place")) == "" {
		return badRequest(c, "place or lat and lon are required")
	}
	ctx := c.Request().Context()
	place, err := s.app.Locate(ctx, c.QueryParam("place"), lat, lon)
	if err != nil {
		return errorResponse(c, err)
	}
	forecast, res, err := s.app.Forecasts.Forecast(ctx, place.Latitude, place.Longitude, refresh(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"place":       place,
		"forecast":    forecast,
		"summary":     forecast.Current.Summary(),
		"source":      res.Source,
		"lastUpdated": res.LastUpdated,
	})
}

func (s *Server) chatHandler(c echo.Context) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	answer, err := s.app.Assistant.Ask(c.Request().Context(), req.Question)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) priceAdviceHandler(c echo.Context) error {
	var req struct {
		Crop          string  `json:"crop"`
		CurrentPrice  float64 `json:"currentPrice"`
		LastWeekPrice float64 `json:"lastWeekPrice"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	q := advisor.PriceQuery{Crop: req.Crop, CurrentPrice: req.CurrentPrice, LastWeekPrice: req.LastWeekPrice}
	advice, err := s.app.Prices.Analyze(c.Request().Context(), q)
	if err != nil {
		return errorResponse(c, err)
	}
	change, percent := q.Change()
	return c.JSON(http.StatusOK, map[string]any{
		"change":        change,
		"changePercent": percent,
		"advice":        advice,
	})
}

func (s *Server) diagnoseHandler(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file is required")
	}
	if file.Size > maxImageBytes {
		return badRequest(c, "image is too large")
	}
	src, err := file.Open()
	if err != nil {
		return badRequest(c, "image could not be read")
	}
	defer src.Close()
	image, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
	if err != nil {
		return badRequest(c, "image could not be read")
	}

	mimeType := file.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		mimeType = http.DetectContentType(image)
	}
	d, diagErr := s.app.Assistant.Diagnose(c.Request().Context(), image, mimeType, c.FormValue("question"))
	if diagErr != nil {
		return errorResponse(c, diagErr)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) listCommunitiesHandler(c echo.Context) error {
	all, err := s.app.Community.List(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, all)
}

func (s *Server) createCommunityHandler(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	created, err := s.app.Community.Create(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) joinCommunityHandler(c echo.Context) error {
	joined, err := s.app.Community.Join(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, joined)
}

func (s *Server) messagesHandler(c echo.Context) error {
	history, err := s.app.Community.Messages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, history)
}

func (s *Server) postMessageHandler(c echo.Context) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	id := c.Param("id")
	msg, err := s.app.Community.Post(c.Request().Context(), id, req.Text)
	if err != nil {
		return errorResponse(c, err)
	}
	s.hub.broadcast(id, msg)
	return c.JSON(http.StatusCreated, msg)
}
