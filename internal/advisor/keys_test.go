package advisor_test

import (
	"testing"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "market_Delhi_Delhi_General", advisor.Key("market", "Delhi", "Delhi", "General"))
	assert.Equal(t, "schemes", advisor.Key("schemes"))
	assert.Equal(t, "market_Navi Mumbai_Maharashtra_Kharif", advisor.Key("market", " Navi Mumbai ", "Maharashtra", "Kharif"))
}

func TestKey_EscapesSeparators(t *testing.T) {
	a := advisor.Key("irrigation", "rice_basmati", "loam")
	b := advisor.Key("irrigation", "rice", "basmati_loam")

	assert.NotEqual(t, a, b)
	assert.Equal(t, "irrigation_rice%5Fbasmati_loam", a)
	assert.Equal(t, "x_100%25", advisor.Key("x", "100%"))
}

func TestWeatherKey(t *testing.T) {
	assert.Equal(t, "weather_28.61_77.21", advisor.WeatherKey(28.6139, 77.2090))
	assert.Equal(t, "weather_-33.87_151.21", advisor.WeatherKey(-33.8688, 151.2093))
}
