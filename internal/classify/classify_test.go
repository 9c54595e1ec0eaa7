package classify

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"afkmon/internal/journal"
	"afkmon/internal/notify"
	"afkmon/internal/state"

	"pgregory.net/rapid"
)

func newTracker() *state.Tracker {
	tr := state.NewTracker("test")
	tr.Now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return tr
}

type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

func feed(t fataler, c *Classifier, tr *state.Tracker, line string) Result {
	t.Helper()
	rec, err := journal.Parse(line)
	if err != nil {
		t.Fatalf("parse %s: %v", line, err)
	}
	res, err := c.Classify(tr, rec)
	if err != nil {
		t.Fatalf("classify %s: %v", line, err)
	}
	return res
}

func ts(sec int) string {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second).Format(time.RFC3339)
}

func bounty(sec int, target string, reward int) string {
	return fmt.Sprintf(`{"timestamp":%q,"event":"Bounty","Target":%q,"TotalReward":%d,"VictimFaction":"Pirates"}`, ts(sec), target, reward)
}

func TestTwoKillsScenario(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()

	first := feed(t, c, tr, bounty(0, "viper", 5000))
	second := feed(t, c, tr, bounty(120, "viper", 7000))
	if len(first.Notes) != 1 || len(second.Notes) != 1 {
		t.Fatalf("notes = %d, %d", len(first.Notes), len(second.Notes))
	}
	n := second.Notes[0]
	if !strings.Contains(n.Terminal, "(+2m0s)") {
		t.Fatalf("terminal = %q", n.Terminal)
	}
	if n.Severity != notify.Remote || n.Category != notify.KillEasy || n.Tone != notify.ToneEasy {
		t.Fatalf("note = %+v", n)
	}
	if tr.Session.Bounties != 12000 || tr.Session.Kills != 2 {
		t.Fatalf("session = %+v", tr.Session)
	}
	if n.Remote != "**Viper (+2m0s)** [Pirates]" {
		t.Fatalf("remote = %q", n.Remote)
	}
}

func TestHardKillAndRewardFallbacks(t *testing.T) {
	c := New(Settings{BountyValue: true}, nil)
	tr := newTracker()

	res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"Bounty","Target":"python","Target_Localised":"Python","Rewards":[{"Faction":"A","Reward":1000},{"Faction":"B","Reward":500}],"VictimFaction":"X"}`, ts(0)))
	n := res.Notes[0]
	if n.Category != notify.KillHard || !strings.Contains(n.Remote, "☠️") {
		t.Fatalf("note = %+v", n)
	}
	if tr.Session.Bounties != 1500 || !strings.Contains(n.Terminal, "[2k cr]") {
		t.Fatalf("bounties %d terminal %q", tr.Session.Bounties, n.Terminal)
	}

	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"FactionKillBond","Reward":20000,"VictimFaction":"Y"}`, ts(60)))
	if tr.Run.KillType != state.KillTypeBonds || tr.Session.Bounties != 21500 {
		t.Fatalf("bond: %s %d", tr.Run.KillType, tr.Session.Bounties)
	}
}

func TestRollupOnlyOnMultiplesOfTen(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := New(DefaultSettings(), nil)
		tr := newTracker()
		n := rapid.IntRange(1, 35).Draw(rt, "kills")
		sec := 0
		for i := 1; i <= n; i++ {
			sec += rapid.IntRange(1, 600).Draw(rt, "gap")
			res := feed(rt, c, tr, bounty(sec, "viper", 1000))
			rollup := 0
			for _, note := range res.Notes {
				if note.Category == notify.SummaryKills {
					rollup++
				}
			}
			want := 0
			if i%10 == 0 {
				want = 1
			}
			if rollup != want {
				rt.Fatalf("kill %d: rollups = %d, want %d", i, rollup, want)
			}
		}
	})
}

func TestRollupText(t *testing.T) {
	c := New(Settings{ExtendedStats: true}, nil)
	tr := newTracker()
	var res Result
	for i := 0; i < 20; i++ {
		res = feed(t, c, tr, bounty(i*360, "viper", 10000))
	}
	if len(res.Notes) != 3 {
		t.Fatalf("notes = %d", len(res.Notes))
	}
	if got := res.Notes[1].Terminal; got != "Session kills: 20 (10.0/hr | 6m0s/kill) [Last 10: 10.0/hr]" {
		t.Fatalf("kills line = %q", got)
	}
	if got := res.Notes[2].Terminal; got != "Session bounties: 200k (105k/hr | 10k/kill)" {
		t.Fatalf("bounties line = %q", got)
	}
}

func TestFuelCritical(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"ReservoirReplenished","FuelMain":3.2,"FuelReservoir":0.5}`, ts(0)))
	n := res.Notes[0]
	if n.Category != notify.FuelCritical || n.Severity != notify.Urgent {
		t.Fatalf("note = %+v", n)
	}
	if n.Remote != "**Fuel critical! 5% remaining**" {
		t.Fatalf("remote = %q", n.Remote)
	}
	if tr.Session.Fuel.Remaining != 3.2 {
		t.Fatalf("fuel reading not stored")
	}
}

func TestFuelProjectionWhileDeployed(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"Location","BodyType":"PlanetaryRing"}`, ts(0)))
	first := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"ReservoirReplenished","FuelMain":40}`, ts(0)))
	if first.Notes[0].Category != notify.FuelReport || first.Notes[0].Severity != notify.Local {
		t.Fatalf("first = %+v", first.Notes[0])
	}
	second := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"ReservoirReplenished","FuelMain":39}`, ts(3600)))
	if !strings.HasSuffix(second.Notes[0].Terminal, "(~39h0m)") {
		t.Fatalf("terminal = %q", second.Notes[0].Terminal)
	}
}

func TestMissionLifecycle(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"MissionAccepted","Name":"Mission_Massacre","MissionID":7}`, ts(0)))
	if len(tr.Run.MissionsActive) != 0 {
		t.Fatalf("accept before snapshot should be ignored")
	}
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"Missions","Active":[{"MissionID":1,"Name":"Mission_Massacre_name","Expires":100},{"MissionID":2,"Name":"Mission_Courier","Expires":100},{"MissionID":3,"Name":"Mission_Massacre","Expires":0}]}`, ts(1)))
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"MissionAccepted","Name":"Mission_Massacre","MissionID":4}`, ts(2)))
	if len(tr.Run.MissionsActive) != 2 {
		t.Fatalf("active = %v", tr.Run.MissionsActive)
	}

	partial := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"MissionRedirected","Name":"Mission_Massacre","MissionID":1}`, ts(3)))
	if partial.Notes[0].Category != notify.Missions || partial.Notes[0].Terminal != "Completed kills for a mission (1/2)" {
		t.Fatalf("partial = %+v", partial.Notes[0])
	}
	full := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"MissionRedirected","Name":"Mission_Massacre","MissionID":4}`, ts(4)))
	if full.Notes[0].Category != notify.MissionsAll || !strings.Contains(full.Notes[0].Terminal, "all missions") {
		t.Fatalf("full = %+v", full.Notes[0])
	}

	done := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"MissionCompleted","MissionID":1}`, ts(5)))
	if done.Notes[0].Terminal != "Massacre mission completed (active: 1)" || tr.Run.MissionRedirects != 1 {
		t.Fatalf("done = %q redirects %d", done.Notes[0].Terminal, tr.Run.MissionRedirects)
	}
	if res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"MissionFailed","MissionID":99}`, ts(6))); len(res.Notes) != 0 {
		t.Fatalf("untracked mission produced %v", res.Notes)
	}
}

func TestSecurityScanTakesPriority(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	line := fmt.Sprintf(`{"timestamp":%q,"event":"ShipTargeted","Ship":"viper","PilotName":"$ShipName_Police_Federation;","PilotRank":"Elite"}`, ts(0))
	res := feed(t, c, tr, line)
	if len(res.Notes) != 1 || res.Notes[0].Category != notify.SecurityScan {
		t.Fatalf("notes = %+v", res.Notes)
	}
	if tr.Deployed() {
		t.Fatalf("security scan must not start a session")
	}
	// Same security ship again falls through to the combat scan rule.
	res = feed(t, c, tr, line)
	if len(res.Notes) != 1 || res.Notes[0].Category != notify.ScanEasy || res.Notes[0].Terminal != "Scan: Viper (Elite)" {
		t.Fatalf("notes = %+v", res.Notes)
	}
	if res = feed(t, c, tr, line); len(res.Notes) != 0 {
		t.Fatalf("repeat scan produced %+v", res.Notes)
	}
}

func TestFighterRules(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	hull := fmt.Sprintf(`{"timestamp":%q,"event":"HullDamage","Health":0.5,"Fighter":true,"PlayerPilot":false}`, ts(0))
	if res := feed(t, c, tr, hull); len(res.Notes) != 1 || res.Notes[0].Terminal != "Fighter hull damaged! (Integrity: 50%)" {
		t.Fatalf("first hull = %+v", res.Notes)
	}
	if res := feed(t, c, tr, hull); len(res.Notes) != 0 {
		t.Fatalf("unchanged hull repeated")
	}
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"StartJump"}`, ts(1)))
	if res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"FighterDestroyed"}`, ts(2))); len(res.Notes) != 0 {
		t.Fatalf("fighter destroyed after jump should be ignored")
	}
	if res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"FighterDestroyed"}`, ts(3))); len(res.Notes) != 1 {
		t.Fatalf("fighter destroyed not reported")
	}
}

func TestSessionBoundaries(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	feed(t, c, tr, bounty(0, "viper", 100))
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"SupercruiseDestinationDrop","Type":"$MULTIPLAYER_SCENARIO42_TITLE;","Type_Localised":"Nav Beacon"}`, ts(10)))
	if tr.Session.Kills != 0 || !tr.Run.DeployTime.Equal(time.Date(2025, 3, 1, 12, 0, 10, 0, time.UTC)) {
		t.Fatalf("drop should force a new session: %+v", tr.Run.DeployTime)
	}
	res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"FSDJump","StarSystem":"Sol"}`, ts(20)))
	if tr.Deployed() || res.Notes[0].Terminal != "FSD jump to Sol" {
		t.Fatalf("jump: deployed=%v notes=%+v", tr.Deployed(), res.Notes)
	}
	if res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"Shutdown"}`, ts(30))); !res.Stop {
		t.Fatalf("shutdown should stop")
	}
}

func TestBaitAndCargo(t *testing.T) {
	c := New(Settings{ExtendedStats: true}, nil)
	tr := newTracker()
	res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"ReceiveText","Channel":"npc","Message":"$Pirate_OnNoCargoFound02;"}`, ts(0)))
	if res.Notes[0].DedupKey != notify.BaitValueLow || !strings.HasSuffix(res.Notes[0].Terminal, "(x1)") {
		t.Fatalf("bait = %+v", res.Notes[0])
	}
	res = feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"EjectCargo","Type":"gold","Count":1,"Abandoned":false}`, ts(1)))
	if res.Notes[0].DedupKey != notify.CargoLost || res.Notes[0].Remote != "**Cargo stolen!** (Gold)" {
		t.Fatalf("cargo = %+v", res.Notes[0])
	}
	if res = feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"EjectCargo","Type":"gold","Count":5,"Abandoned":true}`, ts(2))); len(res.Notes) != 0 {
		t.Fatalf("jettison reported as theft")
	}
}

func TestLoadGameWithRank(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"Rank","Combat":8}`, ts(0)))
	feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"Progress","Combat":42}`, ts(0)))
	res := feed(t, c, tr, fmt.Sprintf(`{"timestamp":%q,"event":"LoadGame","Commander":"Jameson","Ship":"python","Ship_Localised":"Python","GameMode":"Group"}`, ts(1)))
	if got := res.Notes[0].Terminal; got != "Loaded CMDR Jameson (Python / Private / Elite +42%)" {
		t.Fatalf("load game = %q", got)
	}
	if tr.Run.Cmdr.Name != "Jameson" {
		t.Fatalf("commander = %q", tr.Run.Cmdr.Name)
	}
}

func TestMeritsNeedUnreportedKill(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	merit := fmt.Sprintf(`{"timestamp":%q,"event":"PowerplayMerits","MeritsGained":40,"Power":"Aisling Duval"}`, ts(5))
	if res := feed(t, c, tr, merit); len(res.Notes) != 0 {
		t.Fatalf("merits without kill reported")
	}
	feed(t, c, tr, bounty(0, "viper", 100))
	feed(t, c, tr, merit)
	feed(t, c, tr, merit)
	if tr.Session.Merits != 40 || tr.Run.TotalMerits != 40 {
		t.Fatalf("merits = %d / %d", tr.Session.Merits, tr.Run.TotalMerits)
	}
}

func TestMalformedAndUnknownRecords(t *testing.T) {
	c := New(DefaultSettings(), nil)
	tr := newTracker()
	if res := feed(t, c, tr, `{"timestamp":"2025-03-01T12:00:00Z","event":"Scan","BodyName":"x"}`); len(res.Notes) != 0 {
		t.Fatalf("unknown kind produced notes")
	}

	rec, _ := journal.Parse(`{"timestamp":"2025-03-01T12:00:05Z","event":"ShieldState","ShieldsUp":"yes"}`)
	_, err := c.Classify(tr, rec)
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != "ShieldState" {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "12:00:05") {
		t.Fatalf("error lacks logtime: %v", err)
	}
	var fe *journal.FieldError
	if !errors.As(err, &fe) || fe.Key != "ShieldsUp" {
		t.Fatalf("field error = %v", err)
	}
}

func TestRunTotals(t *testing.T) {
	run := &state.Run{TotalKills: 1}
	if RunTotals(run, notify.DefaultTable{}) != nil {
		t.Fatalf("totals for a single kill")
	}
	run = &state.Run{TotalKills: 3, TotalTime: 20 * time.Minute, TotalBounties: 90000, TotalMerits: 30, KillType: "bounties"}
	got := RunTotals(run, notify.DefaultTable{})
	if len(got) != 3 || got[0].Terminal != "Total kills: 3 (6.0/hr | 10m0s/kill)" {
		t.Fatalf("totals = %+v", got)
	}
	if got[1].Terminal != "Total bounties: 90k (270k/hr | 30k/kill)" {
		t.Fatalf("bounties = %q", got[1].Terminal)
	}
}

func TestLoadoutFuelFallback(t *testing.T) {
	tests := []struct {
		name     string
		fallback float64
		line     string
		want     float64
	}{
		{"reported", 48, `{"event":"Loadout","FuelCapacity":{"Main":32,"Reserve":0.5}}`, 32},
		{"configured fallback", 48, `{"event":"Loadout","FuelCapacity":{"Main":0,"Reserve":0.5}}`, 48},
		{"built-in fallback", 0, `{"event":"Loadout","FuelCapacity":{"Main":1}}`, state.DefaultFuelCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.FuelFallback = tt.fallback
			c := New(s, nil)
			tr := newTracker()
			feed(t, c, tr, tt.line)
			if tr.Run.FuelCapacity != tt.want {
				t.Fatalf("FuelCapacity = %v, want %v", tr.Run.FuelCapacity, tt.want)
			}
		})
	}
}
