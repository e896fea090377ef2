// Package metadata renders and parses the ZgloszenieZguby XML document
// published alongside each registry record.
package metadata

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
)

const (
	StatusStored   = "PRZECHOWYWANY"
	StatusReturned = "WYDANY"
)

type Document struct {
	XMLName   xml.Name  `xml:"ZgloszenieZguby"`
	Header    Header    `xml:"Naglowek"`
	Item      Item      `xml:"Przedmiot"`
	Context   Context   `xml:"KontekstZnalezienia"`
	Warehouse Warehouse `xml:"DaneMagazynowe"`
}

type Header struct {
	ID         string `xml:"IdentyfikatorUnikalny"`
	Office     Office `xml:"JednostkaSamorzadu"`
	CreatedAt  string `xml:"DataUtworzeniaRekordu,omitempty"`
	OperatorID string `xml:"OperatorID,omitempty"`
}

type Office struct {
	Name  string `xml:"Nazwa"`
	Teryt string `xml:"KodTERYT,omitempty"`
}

type Item struct {
	Category     string        `xml:"KategoriaGlowna"`
	Subcategory  string        `xml:"Podkategoria,omitempty"`
	Name         string        `xml:"NazwaPubliczna"`
	Description  string        `xml:"OpisSzczegolowy,omitempty"`
	Translations []Translation `xml:"Tlumaczenia>Opis,omitempty"`
	Traits       Traits        `xml:"Cechy"`
}

type Translation struct {
	Lang string `xml:"jezyk,attr"`
	Text string `xml:",chardata"`
}

// Traits accepts both the typed list form and the flat form produced by image analysis.
type Traits struct {
	List      []Trait `xml:"Cecha"`
	Color     string  `xml:"Kolor,omitempty"`
	Brand     string  `xml:"Marka,omitempty"`
	Condition string  `xml:"Stan,omitempty"`
}

type Trait struct {
	Type  string `xml:"typ,attr"`
	Value string `xml:",chardata"`
}

type Context struct {
	FoundDate string `xml:"DataZnalezienia"`
	Place     string `xml:"MiejsceOpis,omitempty"`
	Geo       *Geo   `xml:"LokalizacjaGeo,omitempty"`
}

type Geo struct {
	Lat string `xml:"Lat"`
	Lon string `xml:"Lon"`
}

type Warehouse struct {
	Status string `xml:"Status"`
	Shelf  string `xml:"LokalizacjaPolka,omitempty"`
	QR     QR     `xml:"KodQR"`
}

type QR struct {
	Link string `xml:"Link"`
}

const (
	traitColor     = "kolor"
	traitBrand     = "marka"
	traitCondition = "stan"
)

// Encode renders the metadata document for r.
func Encode(r domain.Record, office domain.Office, link string, translations map[string]string, createdAt time.Time) ([]byte, error) {
	doc := Document{
		Header: Header{
			ID: r.ID,
			Office: Office{
				Name:  office.DisplayName,
				Teryt: office.TerytCode,
			},
			CreatedAt:  createdAt.UTC().Format(time.RFC3339),
			OperatorID: office.OperatorID,
		},
		Item: Item{
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Name:        r.Name,
			Description: r.Description,
		},
		Context: Context{
			FoundDate: r.FoundDate,
			Place:     r.LocationText,
		},
		Warehouse: Warehouse{
			Status: StatusStored,
			Shelf:  office.Shelf,
			QR:     QR{Link: link},
		},
	}

	if doc.Header.Office.Name == "" {
		doc.Header.Office.Name = office.Name
	}
	if r.Returned {
		doc.Warehouse.Status = StatusReturned
	}
	if r.HasGeo() {
		doc.Context.Geo = &Geo{Lat: r.Lat, Lon: r.Lon}
	}

	for typ, value := range map[string]string{
		traitColor:     r.Attributes.Color,
		traitBrand:     r.Attributes.Brand,
		traitCondition: r.Attributes.Condition,
	} {
		if value != "" {
			doc.Item.Traits.List = append(doc.Item.Traits.List, Trait{Type: typ, Value: value})
		}
	}
	sort.Slice(doc.Item.Traits.List, func(i, j int) bool {
		return doc.Item.Traits.List[i].Type < doc.Item.Traits.List[j].Type
	})

	langs := make([]string, 0, len(translations))
	for lang := range translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if translations[lang] != "" {
			doc.Item.Translations = append(doc.Item.Translations, Translation{Lang: lang, Text: translations[lang]})
		}
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal metadata")
	}
	return append([]byte(xml.Header), body...), nil
}

var requiredFields = []string{
	"IdentyfikatorUnikalny",
	"KategoriaGlowna",
	"Status",
	"DataZnalezienia",
}

// Decode parses an uploaded document into form data.
// Missing required fields are reported as a *domain.ValidationError.
func Decode(data []byte) (lostfound.FormData, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		verr := &domain.ValidationError{}
		verr.Add("xml", "malformed document: "+err.Error())
		return lostfound.FormData{}, verr
	}

	values := map[string]string{
		"IdentyfikatorUnikalny": doc.Header.ID,
		"KategoriaGlowna":       doc.Item.Category,
		"Status":                doc.Warehouse.Status,
		"DataZnalezienia":       doc.Context.FoundDate,
	}
	verr := &domain.ValidationError{}
	for _, field := range requiredFields {
		if strings.TrimSpace(values[field]) == "" {
			verr.Add(field, "required")
		}
	}

	form := lostfound.FormData{
		Category:    strings.TrimSpace(doc.Item.Category),
		Subcategory: strings.TrimSpace(doc.Item.Subcategory),
		Name:        strings.TrimSpace(doc.Item.Name),
		Description: strings.TrimSpace(doc.Item.Description),
		Attributes: lostfound.Attributes{
			Color:     strings.TrimSpace(doc.Item.Traits.Color),
			Brand:     strings.TrimSpace(doc.Item.Traits.Brand),
			Condition: strings.TrimSpace(doc.Item.Traits.Condition),
		},
		Location:  strings.TrimSpace(doc.Context.Place),
		FoundDate: strings.TrimSpace(doc.Context.FoundDate),
		SourceID:  strings.TrimSpace(doc.Header.ID),
	}

	for _, trait := range doc.Item.Traits.List {
		value := strings.TrimSpace(trait.Value)
		switch strings.ToLower(strings.TrimSpace(trait.Type)) {
		case traitColor:
			form.Attributes.Color = value
		case traitBrand:
			form.Attributes.Brand = value
		case traitCondition:
			form.Attributes.Condition = value
		}
	}

	for _, tr := range doc.Item.Translations {
		switch strings.ToLower(tr.Lang) {
		case "en":
			form.DescriptionEN = strings.TrimSpace(tr.Text)
		case "uk", "ua":
			form.DescriptionUA = strings.TrimSpace(tr.Text)
		}
	}

	if doc.Context.Geo != nil && (doc.Context.Geo.Lat != "" || doc.Context.Geo.Lon != "") {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(doc.Context.Geo.Lat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(doc.Context.Geo.Lon), 64)
		if latErr != nil || lonErr != nil {
			verr.Add("LokalizacjaGeo", "lat and lon must both be numbers")
		} else {
			form.Lat = &lat
			form.Lng = &lon
		}
	}

	if err := verr.OrNil(); err != nil {
		return lostfound.FormData{}, err
	}
	return form, nil
}

// MarkReturned rewrites the warehouse status of an existing document,
// keeping every other element as published.
func MarkReturned(data []byte) ([]byte, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse metadata")
	}
	doc.Warehouse.Status = StatusReturned

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal metadata")
	}
	return append([]byte(xml.Header), body...), nil
}
