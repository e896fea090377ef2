package codec

import (
	"strconv"
	"strings"

	"github.com/totegamma/lostfound/internal/domain"
)

type column struct {
	name string
	get  func(r *domain.Record) string
	set  func(r *domain.Record, v string) error
}

func textColumn(name string, field func(r *domain.Record) *string) column {
	return column{
		name: name,
		get:  func(r *domain.Record) string { return *field(r) },
		set: func(r *domain.Record, v string) error {
			*field(r) = v
			return nil
		},
	}
}

// Column names, in persisted order. Changing this list is a schema migration.
const (
	ColID           = "ID"
	ColCategory     = "Category"
	ColSubcategory  = "Subcategory"
	ColName         = "Name"
	ColDescription  = "Description"
	ColColor        = "Color"
	ColBrand        = "Brand"
	ColCondition    = "Condition"
	ColFoundDate    = "FoundDate"
	ColLocationText = "LocationText"
	ColLat          = "Lat"
	ColLon          = "Lon"
	ColReturned     = "Returned"
	ColResources    = "Resources"
	ColTags         = "Tags"
	ColSupplements  = "Supplements"
)

var columns = []column{
	textColumn(ColID, func(r *domain.Record) *string { return &r.ID }),
	textColumn(ColCategory, func(r *domain.Record) *string { return &r.Category }),
	textColumn(ColSubcategory, func(r *domain.Record) *string { return &r.Subcategory }),
	textColumn(ColName, func(r *domain.Record) *string { return &r.Name }),
	textColumn(ColDescription, func(r *domain.Record) *string { return &r.Description }),
	textColumn(ColColor, func(r *domain.Record) *string { return &r.Attributes.Color }),
	textColumn(ColBrand, func(r *domain.Record) *string { return &r.Attributes.Brand }),
	textColumn(ColCondition, func(r *domain.Record) *string { return &r.Attributes.Condition }),
	textColumn(ColFoundDate, func(r *domain.Record) *string { return &r.FoundDate }),
	textColumn(ColLocationText, func(r *domain.Record) *string { return &r.LocationText }),
	textColumn(ColLat, func(r *domain.Record) *string { return &r.Lat }),
	textColumn(ColLon, func(r *domain.Record) *string { return &r.Lon }),
	{
		name: ColReturned,
		get: func(r *domain.Record) string {
			return strconv.FormatBool(r.Returned)
		},
		set: func(r *domain.Record, v string) error {
			v = strings.TrimSpace(v)
			if v == "" {
				r.Returned = false
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			r.Returned = b
			return nil
		},
	},
	textColumn(ColResources, func(r *domain.Record) *string { return &r.Extra.Resources }),
	textColumn(ColTags, func(r *domain.Record) *string { return &r.Extra.Tags }),
	textColumn(ColSupplements, func(r *domain.Record) *string { return &r.Extra.Supplements }),
}

var columnIndex = func() map[string]int {
	m := make(map[string]int, len(columns))
	for i, c := range columns {
		m[strings.ToLower(c.name)] = i
	}
	return m
}()

// Columns returns the persisted column names in order.
func Columns() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// SetField assigns a textual value to the named column of r.
func SetField(r *domain.Record, field, value string) error {
	i, ok := columnIndex[strings.ToLower(field)]
	if !ok {
		return &UnknownFieldError{Field: field}
	}
	if err := columns[i].set(r, value); err != nil {
		return &FieldValueError{Field: columns[i].name, Value: value, Err: err}
	}
	return nil
}

// Field returns the textual value of the named column of r.
func Field(r domain.Record, field string) (string, error) {
	i, ok := columnIndex[strings.ToLower(field)]
	if !ok {
		return "", &UnknownFieldError{Field: field}
	}
	return columns[i].get(&r), nil
}
