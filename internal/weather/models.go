package weather

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

var ErrInvalidPreferences = errors.New("weather: invalid preferences")

// Coordinates locates a station in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance to other in kilometers.
func (c Coordinates) DistanceKM(other Coordinates) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - c.Latitude) * math.Pi / 180
	dLon := (other.Longitude - c.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type Condition string

const (
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
	ConditionUnknown Condition = "unknown"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionClear, ConditionCloudy, ConditionRain, ConditionSnow, ConditionStorm, ConditionMist, ConditionUnknown:
		return true
	}
	return false
}

// ConditionFromCode maps an OpenWeatherMap condition code group to a
// Condition. 2xx thunderstorm, 3xx/5xx rain, 6xx snow, 7xx atmosphere,
// 800 clear, 80x clouds.
func ConditionFromCode(code int) Condition {
	switch {
	case code >= 200 && code < 300:
		return ConditionStorm
	case code >= 300 && code < 400:
		return ConditionRain
	case code >= 500 && code < 600:
		return ConditionRain
	case code >= 600 && code < 700:
		return ConditionSnow
	case code >= 700 && code < 800:
		return ConditionMist
	case code == 800:
		return ConditionClear
	case code > 800 && code < 900:
		return ConditionCloudy
	}
	return ConditionUnknown
}

// Information is one station's weather reading. Temperature is stored in
// Kelvin and converted on display only.
type Information struct {
	StationID     int64       `json:"station_id"`
	StationName   string      `json:"station_name"`
	Coordinates   Coordinates `json:"coordinates"`
	Temperature   float64     `json:"temperature"`
	Humidity      float64     `json:"humidity"`
	Pressure      float64     `json:"pressure"`
	WindSpeed     float64     `json:"wind_speed"`
	WindDirection float64     `json:"wind_direction"`
	CloudCoverage float64     `json:"cloud_coverage"`
	Condition     Condition   `json:"condition"`
	ObservedAt    time.Time   `json:"observed_at"`
}

// RecordIdentifier is the stable identifier an Information record is
// persisted under.
func (i Information) RecordIdentifier() string {
	return strconv.FormatInt(i.StationID, 10)
}

// Station is a bookmarkable weather station.
type Station struct {
	Identifier  int64       `json:"identifier"`
	Name        string      `json:"name"`
	Country     string      `json:"country"`
	Coordinates Coordinates `json:"coordinates"`
}

func (s Station) RecordIdentifier() string {
	return strconv.FormatInt(s.Identifier, 10)
}

type TemperatureUnit string

const (
	TemperatureUnitCelsius    TemperatureUnit = "celsius"
	TemperatureUnitFahrenheit TemperatureUnit = "fahrenheit"
	TemperatureUnitKelvin     TemperatureUnit = "kelvin"
)

func (u TemperatureUnit) Valid() bool {
	switch u {
	case TemperatureUnitCelsius, TemperatureUnitFahrenheit, TemperatureUnitKelvin:
		return true
	}
	return false
}

// Convert renders a Kelvin reading in the unit.
func (u TemperatureUnit) Convert(kelvin float64) float64 {
	switch u {
	case TemperatureUnitCelsius:
		return kelvin - 273.15
	case TemperatureUnitFahrenheit:
		return kelvin*9/5 - 459.67
	default:
		return kelvin
	}
}

func (u TemperatureUnit) Symbol() string {
	switch u {
	case TemperatureUnitCelsius:
		return "°C"
	case TemperatureUnitFahrenheit:
		return "°F"
	default:
		return "K"
	}
}

// Format renders a Kelvin reading as a display string, e.g. "21.5°C".
func (u TemperatureUnit) Format(kelvin float64) string {
	return strconv.FormatFloat(round1(u.Convert(kelvin)), 'f', -1, 64) + u.Symbol()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type DistanceUnit string

const (
	DistanceUnitMetric   DistanceUnit = "metric"
	DistanceUnitImperial DistanceUnit = "imperial"
)

func (u DistanceUnit) Valid() bool {
	return u == DistanceUnitMetric || u == DistanceUnitImperial
}

type SortingOrientation string

const (
	SortByName        SortingOrientation = "name"
	SortByTemperature SortingOrientation = "temperature"
	SortByDistance    SortingOrientation = "distance"
)

func (s SortingOrientation) Valid() bool {
	switch s {
	case SortByName, SortByTemperature, SortByDistance:
		return true
	}
	return false
}

// SortInformation orders readings in place. Distance ordering needs a
// reference point; a nil reference falls back to name ordering.
func SortInformation(list []Information, orientation SortingOrientation, reference *Coordinates) {
	switch orientation {
	case SortByTemperature:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Temperature < list[j].Temperature })
	case SortByDistance:
		if reference == nil {
			sort.SliceStable(list, func(i, j int) bool { return list[i].StationName < list[j].StationName })
			return
		}
		sort.SliceStable(list, func(i, j int) bool {
			return reference.DistanceKM(list[i].Coordinates) < reference.DistanceKM(list[j].Coordinates)
		})
	default:
		sort.SliceStable(list, func(i, j int) bool { return list[i].StationName < list[j].StationName })
	}
}

const (
	minNearbyResults = 1
	maxNearbyResults = 50
)

// Preferences holds the user-tunable display and refresh settings persisted
// alongside the weather data.
type Preferences struct {
	TemperatureUnit       TemperatureUnit    `json:"temperature_unit"`
	DistanceUnit          DistanceUnit       `json:"distance_unit"`
	SortingOrientation    SortingOrientation `json:"sorting_orientation"`
	AmountOfNearbyResults int                `json:"amount_of_nearby_results"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		TemperatureUnit:       TemperatureUnitCelsius,
		DistanceUnit:          DistanceUnitMetric,
		SortingOrientation:    SortByName,
		AmountOfNearbyResults: 10,
	}
}

func (p Preferences) Validate() error {
	if !p.TemperatureUnit.Valid() {
		return fmt.Errorf("%w: temperature unit %q", ErrInvalidPreferences, p.TemperatureUnit)
	}
	if !p.DistanceUnit.Valid() {
		return fmt.Errorf("%w: distance unit %q", ErrInvalidPreferences, p.DistanceUnit)
	}
	if !p.SortingOrientation.Valid() {
		return fmt.Errorf("%w: sorting orientation %q", ErrInvalidPreferences, p.SortingOrientation)
	}
	if p.AmountOfNearbyResults < minNearbyResults || p.AmountOfNearbyResults > maxNearbyResults {
		return fmt.Errorf("%w: amount of nearby results %d outside %d..%d", ErrInvalidPreferences, p.AmountOfNearbyResults, minNearbyResults, maxNearbyResults)
	}
	return nil
}
