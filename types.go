package lostfound

import (
	"time"
)

// Attributes are the fixed descriptive traits collected for every item.
type Attributes struct {
	Color     string `json:"kolor"`
	Brand     string `json:"marka"`
	Condition string `json:"stan"`
}

// FormData is the payload produced by the intake wizard (manual entry or image analysis).
type FormData struct {
	Category      string     `json:"kategoria"`
	Subcategory   string     `json:"podkategoria"`
	Name          string     `json:"nazwa"`
	Description   string     `json:"opis"`
	DescriptionEN string     `json:"opisEN,omitempty"`
	DescriptionUA string     `json:"opisUA,omitempty"`
	Attributes    Attributes `json:"cechy"`
	Location      string     `json:"miejsce"`
	FoundDate     string     `json:"data"`
	Lat           *float64   `json:"lat"`
	Lng           *float64   `json:"lng"`

	// SourceID is the identifier carried by an imported document, kept for reference only.
	SourceID string `json:"sourceId,omitempty"`
}

// Item is the public view of a registry record.
type Item struct {
	ID           string            `json:"id"`
	Category     string            `json:"kategoria"`
	Subcategory  string            `json:"podkategoria"`
	Name         string            `json:"nazwa"`
	Description  string            `json:"opis"`
	Translations map[string]string `json:"tlumaczenia,omitempty"`
	Attributes   Attributes        `json:"cechy"`
	FoundDate    string            `json:"data"`
	Location     string            `json:"miejsce"`
	Lat          *float64          `json:"lat"`
	Lng          *float64          `json:"lng"`
	Returned     bool              `json:"CzyOdebrany"`
	Status       string            `json:"status"`
	Resources    string            `json:"zasoby,omitempty"`
	Tags         string            `json:"tagi,omitempty"`
	Supplements  string            `json:"uzupelnienia,omitempty"`
	PublicLink   string            `json:"publicLink,omitempty"`
}

// FileRefs points at the artifacts written for a published item.
type FileRefs struct {
	CSV string `json:"csv"`
	QR  string `json:"qr"`
	XML string `json:"xml"`
}

type PublishResult struct {
	Success    bool     `json:"success"`
	ID         string   `json:"id"`
	PublicLink string   `json:"publicLink"`
	Files      FileRefs `json:"files"`
}

type MarkReturnedResult struct {
	OK              bool `json:"ok"`
	AlreadyReturned bool `json:"alreadyReturned"`
}

// Event is broadcast after a registry mutation.
type Event struct {
	Schema string    `json:"schema"`
	Office string    `json:"office"`
	ItemID string    `json:"itemId"`
	At     time.Time `json:"at"`
	Item   *Item     `json:"item,omitempty"`
}

// OfficeInfo describes one issuing office in the info document.
type OfficeInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Categories  []string `json:"categories,omitempty"`
	Registry    string   `json:"registry"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type Info struct {
	Version   string              `json:"version"`
	Offices   []OfficeInfo        `json:"offices"`
	Endpoints map[string]Endpoint `json:"endpoints"`
}
