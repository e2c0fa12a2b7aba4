// Package season tags purchase dates with a weather season and a festival
// window.
package season

import "time"

type Weather string

const (
	Winter  Weather = "Winter"
	Summer  Weather = "Summer"
	Monsoon Weather = "Monsoon"
	Autumn  Weather = "Autumn"
)

type Festival string

const (
	NewYear      Festival = "New Year"
	Holi         Festival = "Holi"
	Eid          Festival = "Eid"
	Independence Festival = "Independence Day"
	Dussehra     Festival = "Dussehra"
	Diwali       Festival = "Diwali"
	Christmas    Festival = "Christmas"
	None         Festival = "None"
)

var (
	weatherLabels  = []Weather{Winter, Summer, Monsoon, Autumn}
	festivalLabels = []Festival{NewYear, Holi, Eid, Independence, Dussehra, Diwali, Christmas, None}
)

// WeatherLabels returns the four weather seasons in canonical order.
func WeatherLabels() []Weather {
	out := make([]Weather, len(weatherLabels))
	copy(out, weatherLabels)
	return out
}

// FestivalLabels returns the eight festival labels, None last.
func FestivalLabels() []Festival {
	out := make([]Festival, len(festivalLabels))
	copy(out, festivalLabels)
	return out
}

// ParseFestival resolves a label case-insensitively.
func ParseFestival(value string) (Festival, bool) {
	for _, f := range festivalLabels {
		if equalFold(string(f), value) {
			return f, true
		}
	}
	return "", false
}

// WeatherSeason maps a month onto its weather season.
func WeatherSeason(month time.Month) Weather {
	switch month {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Summer
	case time.June, time.July, time.August:
		return Monsoon
	default:
		return Autumn
	}
}
