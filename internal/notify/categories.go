package notify

// Severity categories. Each maps to a configurable log level.
const (
	ScanEasy        = "ScanEasy"
	ScanHard        = "ScanHard"
	KillEasy        = "KillEasy"
	KillHard        = "KillHard"
	FighterHull     = "FighterHull"
	FighterDown     = "FighterDown"
	FighterLaunch   = "FighterLaunch"
	ShipShields     = "ShipShields"
	ShipHull        = "ShipHull"
	Died            = "Died"
	CargoLost       = "CargoLost"
	BaitValueLow    = "BaitValueLow"
	SecurityScan    = "SecurityScan"
	SecurityAttack  = "SecurityAttack"
	FuelLow         = "FuelLow"
	FuelCritical    = "FuelCritical"
	FuelReport      = "FuelReport"
	Missions        = "Missions"
	MissionsAll     = "MissionsAll"
	Merits          = "Merits"
	SummaryKills    = "SummaryKills"
	SummaryBounties = "SummaryBounties"
	SummaryMerits   = "SummaryMerits"
	NoKills         = "NoKills"
	KillRate        = "KillRate"
	Status          = "Status"
	Travel          = "Travel"
	Game            = "Game"
	Monitor         = "Monitor"
)

// FallbackSeverity applies to categories missing from the defaults table.
const FallbackSeverity = Local

// Defaults is the built-in severity for every known category.
var Defaults = map[string]Severity{
	ScanEasy:        1,
	ScanHard:        2,
	KillEasy:        2,
	KillHard:        2,
	FighterHull:     2,
	FighterDown:     3,
	FighterLaunch:   2,
	ShipShields:     3,
	ShipHull:        3,
	Died:            3,
	CargoLost:       3,
	BaitValueLow:    2,
	SecurityScan:    2,
	SecurityAttack:  3,
	FuelLow:         2,
	FuelCritical:    3,
	FuelReport:      1,
	Missions:        2,
	MissionsAll:     3,
	Merits:          0,
	SummaryKills:    2,
	SummaryBounties: 2,
	SummaryMerits:   2,
	NoKills:         3,
	KillRate:        3,
	Status:          2,
	Travel:          2,
	Game:            2,
	Monitor:         2,
}

// DefaultSeverity returns the built-in severity for category.
func DefaultSeverity(category string) (Severity, bool) {
	s, ok := Defaults[category]
	if !ok {
		return FallbackSeverity, false
	}
	return s, true
}

// Severities resolves the severity for a category.
type Severities interface {
	Severity(category string) Severity
}

// DefaultTable resolves severities from Defaults only.
type DefaultTable struct{}

func (DefaultTable) Severity(category string) Severity {
	s, _ := DefaultSeverity(category)
	return s
}
