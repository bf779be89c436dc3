package weather

import (
	"encoding/json"
	"fmt"
)

type Forecast struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
	Current   Current `json:"current_weather"`
	Daily     Daily   `json:"daily"`
}

type Current struct {
	Temperature float64 `json:"temperature"`
	WeatherCode int     `json:"weathercode"`
	WindSpeed   float64 `json:"windspeed"`
	Time        string  `json:"time"`
}

// Daily holds parallel arrays indexed by forecast day.
type Daily struct {
	Time           []string  `json:"time"`
	TemperatureMax []float64 `json:"temperature_2m_max"`
	TemperatureMin []float64 `json:"temperature_2m_min"`
	WeatherCode    []int     `json:"weathercode"`
}

type Day struct {
	Date        string
	TempMax     float64
	TempMin     float64
	WeatherCode int
	Description string
	Emoji       string
}

// Days zips the daily arrays. Its length is that of the shortest array.
func (f Forecast) Days() []Day {
	n := min(len(f.Daily.Time), len(f.Daily.TemperatureMax), len(f.Daily.TemperatureMin), len(f.Daily.WeatherCode))
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		desc, emoji := Describe(f.Daily.WeatherCode[i])
		days = append(days, Day{
			Date:        f.Daily.Time[i],
			TempMax:     f.Daily.TemperatureMax[i],
			TempMin:     f.Daily.TemperatureMin[i],
			WeatherCode: f.Daily.WeatherCode[i],
			Description: desc,
			Emoji:       emoji,
		})
	}
	return days
}

// Describe maps a WMO weather code to a short description and emoji.
func Describe(code int) (string, string) {
	switch {
	case code == 0:
		return "Clear sky", "☀️"
	case code >= 1 && code <= 3:
		return "Partly cloudy", "⛅"
	case code >= 45 && code <= 48:
		return "Foggy", "🌫️"
	case code >= 51 && code <= 67:
		return "Rainy", "🌧️"
	case code >= 71 && code <= 77:
		return "Snowy", "❄️"
	case code >= 80 && code <= 99:
		return "Thunderstorm", "⛈️"
	default:
		return "Unknown", "🌤️"
	}
}

// Summary is a one-line description used in prompts and terminal output.
func (c Current) Summary() string {
	desc, _ := Describe(c.WeatherCode)
	return fmt.Sprintf("%s, %.1f°C, wind %.1f km/h", desc, c.Temperature, c.WindSpeed)
}

// ParseForecast decodes a forecast payload as returned by the API or as cached.
func ParseForecast(payload string) (Forecast, error) {
	var f Forecast
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Forecast{}, err
	}
	return f, nil
}

type Place struct {
	Name      string  `json:"name"`
	State     string  `json:"admin1"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p Place) String() string {
	if p.State == "" {
		return p.Name
	}
	return p.Name + ", " + p.State
}

type geocodingResponse struct {
	Results []Place `json:"results"`
}
