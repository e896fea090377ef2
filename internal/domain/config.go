package domain

// Office is one issuing office (tenant) with its own registry file.
type Office struct {
	Name        string
	DisplayName string
	TerytCode   string
	OperatorID  string
	Shelf       string
	APIKeyHash  string
	Template    Template
}

// Template is the per-office publication metadata copied into every record.
type Template struct {
	Categories  []string
	Resources   any
	Tags        []string
	Supplements map[string]any
}
