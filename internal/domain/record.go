package domain

// Record is one found-item entry of an office registry.
type Record struct {
	ID           string
	Category     string
	Subcategory  string
	Name         string
	Description  string
	Attributes   Attributes
	FoundDate    string
	LocationText string
	Lat          string
	Lon          string
	Returned     bool
	Extra        ExtraPayload
}

// Attributes are the fixed descriptive traits of an item.
type Attributes struct {
	Color     string
	Brand     string
	Condition string
}

// ExtraPayload holds serialized metadata copied from the office template.
// The registry stores it verbatim.
type ExtraPayload struct {
	Resources   string
	Tags        string
	Supplements string
}

func (r Record) Status() Status {
	if r.Returned {
		return StatusReturned
	}
	return StatusActive
}

// HasGeo reports whether both coordinates are present.
func (r Record) HasGeo() bool {
	return r.Lat != "" && r.Lon != ""
}
