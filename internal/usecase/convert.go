package usecase

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
)

const (
	supplementTranslations = "tlumaczenia"
	supplementSourceID     = "zrodloId"
)

const (
	langEN = "en"
	langUA = "uk"
)

func buildRecord(id string, form lostfound.FormData, tpl domain.Template) (domain.Record, error) {
	extra, err := composeExtra(tpl, form)
	if err != nil {
		return domain.Record{}, err
	}

	return domain.Record{
		ID:          id,
		Category:    form.Category,
		Subcategory: form.Subcategory,
		Name:        form.Name,
		Description: form.Description,
		Attributes: domain.Attributes{
			Color:     form.Attributes.Color,
			Brand:     form.Attributes.Brand,
			Condition: form.Attributes.Condition,
		},
		FoundDate:    strings.TrimSpace(form.FoundDate),
		LocationText: form.Location,
		Lat:          formatCoord(form.Lat),
		Lon:          formatCoord(form.Lng),
		Returned:     false,
		Extra:        extra,
	}, nil
}

func translationsOf(form lostfound.FormData) map[string]string {
	tr := map[string]string{}
	if form.DescriptionEN != "" {
		tr[langEN] = form.DescriptionEN
	}
	if form.DescriptionUA != "" {
		tr[langUA] = form.DescriptionUA
	}
	return tr
}

// composeExtra serializes the office template. Description translations and
// the source identifier of imported documents travel inside Supplements.
func composeExtra(tpl domain.Template, form lostfound.FormData) (domain.ExtraPayload, error) {
	var extra domain.ExtraPayload

	if tpl.Resources != nil {
		b, err := json.Marshal(tpl.Resources)
		if err != nil {
			return extra, errors.Wrap(err, "encode template resources")
		}
		extra.Resources = string(b)
	}

	if len(tpl.Tags) > 0 {
		b, err := json.Marshal(tpl.Tags)
		if err != nil {
			return extra, errors.Wrap(err, "encode template tags")
		}
		extra.Tags = string(b)
	}

	supplements := make(map[string]any, len(tpl.Supplements)+2)
	for k, v := range tpl.Supplements {
		supplements[k] = v
	}
	if tr := translationsOf(form); len(tr) > 0 {
		supplements[supplementTranslations] = tr
	}
	if form.SourceID != "" {
		supplements[supplementSourceID] = form.SourceID
	}
	if len(supplements) > 0 {
		b, err := json.Marshal(supplements)
		if err != nil {
			return extra, errors.Wrap(err, "encode template supplements")
		}
		extra.Supplements = string(b)
	}

	return extra, nil
}

func supplementsOf(rec domain.Record) (map[string]string, string) {
	if rec.Extra.Supplements == "" {
		return nil, ""
	}
	var parsed struct {
		Translations map[string]string `json:"tlumaczenia"`
		SourceID     string            `json:"zrodloId"`
	}
	if err := json.Unmarshal([]byte(rec.Extra.Supplements), &parsed); err != nil {
		return nil, ""
	}
	return parsed.Translations, parsed.SourceID
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseCoord(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// toItem renders a record as its public view.
func toItem(rec domain.Record, link string) lostfound.Item {
	translations, _ := supplementsOf(rec)

	item := lostfound.Item{
		ID:           rec.ID,
		Category:     rec.Category,
		Subcategory:  rec.Subcategory,
		Name:         rec.Name,
		Description:  rec.Description,
		Translations: translations,
		Attributes: lostfound.Attributes{
			Color:     rec.Attributes.Color,
			Brand:     rec.Attributes.Brand,
			Condition: rec.Attributes.Condition,
		},
		FoundDate:   rec.FoundDate,
		Location:    rec.LocationText,
		Returned:    rec.Returned,
		Status:      rec.Status().String(),
		Resources:   rec.Extra.Resources,
		Tags:        rec.Extra.Tags,
		Supplements: rec.Extra.Supplements,
		PublicLink:  link,
	}
	if rec.HasGeo() {
		item.Lat = parseCoord(rec.Lat)
		item.Lng = parseCoord(rec.Lon)
	}
	return item
}
