package controller

import "climate-server/internal/modules/climate/types"

// precipitationByDate folds rows into a date-keyed object. Rows arrive in
// date order, so a later duplicate date overwrites an earlier one.
func precipitationByDate(rows []types.PrecipitationRow) map[string]*float64 {
	out := make(map[string]*float64, len(rows))
	for _, row := range rows {
		out[row.Date] = row.Prcp
	}
	return out
}
