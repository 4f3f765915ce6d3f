package types

// Station is one row of the station table.
type Station struct {
	Station   string  `json:"station"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// PrecipitationRow is a (date, prcp) pair; Prcp is nil when the reading is missing.
type PrecipitationRow struct {
	Date string
	Prcp *float64
}

type TemperatureObservation struct {
	Date string  `json:"Date"`
	Tobs float64 `json:"Temperature Observation"`
}

// TemperatureStats is the single aggregate row; every field is nil when no
// measurement matched the filter.
type TemperatureStats struct {
	Min *float64 `json:"Minimum Temperature"`
	Avg *float64 `json:"Average Temperature"`
	Max *float64 `json:"Maximum Temperature"`
}
