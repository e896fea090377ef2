package domain

const (
	OfficeCtxKey = "lf-office"
	ClerkCtxKey  = "lf-clerk"
)

const (
	OfficeHeader = "X-Office"
	APIKeyHeader = "X-Api-Key"
)

// Status is the lifecycle state of a record: ACTIVE until it is handed back.
type Status int

const (
	StatusActive Status = iota
	StatusReturned
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusReturned:
		return "RETURNED"
	default:
		return "UNKNOWN"
	}
}

// CorruptPolicy selects how an unparseable registry file is treated on read.
type CorruptPolicy int

const (
	CorruptFail CorruptPolicy = iota
	CorruptEmpty
)

func ParseCorruptPolicy(s string) CorruptPolicy {
	switch s {
	case "empty":
		return CorruptEmpty
	default:
		return CorruptFail
	}
}

// MinFoundDate is the earliest accepted found date.
const MinFoundDate = "2000-01-01"

const DateLayout = "2006-01-02"
