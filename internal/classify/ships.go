package classify

// Tier is the combat difficulty of a target hull.
type Tier int

const (
	TierNone Tier = iota
	TierEasy
	TierHard
)

var shipTiers = map[string]Tier{
	"adder":          TierEasy,
	"asp":            TierEasy,
	"asp_scout":      TierEasy,
	"cobramkiii":     TierEasy,
	"cobramkiv":      TierEasy,
	"diamondback":    TierEasy,
	"diamondbackxl":  TierEasy,
	"eagle":          TierEasy,
	"empire_courier": TierEasy,
	"empire_eagle":   TierEasy,
	"krait_light":    TierEasy,
	"sidewinder":     TierEasy,
	"viper":          TierEasy,
	"viper_mkiv":     TierEasy,

	"typex":                    TierHard,
	"typex_2":                  TierHard,
	"typex_3":                  TierHard,
	"anaconda":                 TierHard,
	"federation_dropship_mkii": TierHard,
	"federation_dropship":      TierHard,
	"federation_gunship":       TierHard,
	"ferdelance":               TierHard,
	"empire_trader":            TierHard,
	"krait_mkii":               TierHard,
	"python":                   TierHard,
	"vulture":                  TierHard,
	"type9_military":           TierHard,
}

// ShipTier classifies a raw journal ship identifier.
func ShipTier(ship string) Tier { return shipTiers[ship] }

// CombatRanks are the combat rank names indexed by journal rank number.
var CombatRanks = []string{
	"Harmless", "Mostly Harmless", "Novice", "Competent", "Expert", "Master",
	"Dangerous", "Deadly", "Elite", "Elite I", "Elite II", "Elite III", "Elite IV", "Elite V",
}

// BaitMessages are NPC chatter keys sent when a pirate refuses to engage
// because the cargo is not worth it.
var BaitMessages = []string{"$Pirate_ThreatTooHigh", "$Pirate_NotEnoughCargo", "$Pirate_OnNoCargoFound"}
