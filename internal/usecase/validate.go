package usecase

import (
	"math"
	"strings"
	"time"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
)

// validateForm checks the fields the registry cannot do without.
// today is the current calendar date in DateLayout.
func validateForm(form lostfound.FormData, today string) error {
	verr := &domain.ValidationError{}

	if strings.TrimSpace(form.Name) == "" {
		verr.Add("nazwa", "required")
	}
	if strings.TrimSpace(form.Category) == "" {
		verr.Add("kategoria", "required")
	}

	switch date := strings.TrimSpace(form.FoundDate); {
	case date == "":
		verr.Add("data", "required")
	default:
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			verr.Add("data", "must be a date in YYYY-MM-DD format")
		} else if date > today {
			verr.Add("data", "must not be in the future")
		} else if date < domain.MinFoundDate {
			verr.Add("data", "must not be earlier than "+domain.MinFoundDate)
		}
	}

	switch {
	case form.Lat == nil && form.Lng == nil:
	case form.Lat == nil || form.Lng == nil:
		verr.Add("lat", "lat and lng must be given together")
	default:
		if !inRange(*form.Lat, 90) {
			verr.Add("lat", "out of range")
		}
		if !inRange(*form.Lng, 180) {
			verr.Add("lng", "out of range")
		}
	}

	return verr.OrNil()
}

func inRange(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}
