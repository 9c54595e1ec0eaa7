package classify

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"afkmon/internal/journal"
	"afkmon/internal/metrics"
	"afkmon/internal/notify"
	"afkmon/internal/state"
)

const (
	fuelLow      = 0.2
	fuelCritical = 0.1

	factionMax = 30

	maxMeritsGain = 500
)

func registerRules(c *Classifier) {
	c.Register(isSecurityScan, securityScan, "ShipTargeted")
	c.Register(isCombatScan, combatScan, "ShipTargeted")
	c.Register(nil, kill, "Bounty", "FactionKillBond")
	c.Register(isMassacre, missionRedirected, "MissionRedirected")
	c.Register(nil, fuel, "ReservoirReplenished")
	c.Register(func(e *event) bool { return e.run.LastKind != "StartJump" }, fighterDestroyed, "FighterDestroyed")
	c.Register(func(e *event) bool { return !e.BoolOr("PlayerControlled", true) }, fighterLaunched, "LaunchFighter")
	c.Register(nil, shieldState, "ShieldState")
	c.Register(nil, hullDamage, "HullDamage")
	c.Register(nil, died, "Died")
	c.Register(func(e *event) bool { return e.StrOr("MusicTrack", "") == "MainMenu" }, mainMenu, "Music")
	c.Register(nil, commander, "Commander")
	c.Register(nil, loadGame, "LoadGame")
	c.Register(nil, loadout, "Loadout")
	c.Register(isCombatDrop, destinationDrop, "SupercruiseDestinationDrop")
	c.Register(func(e *event) bool { return e.StrOr("Channel", "") == "npc" }, npcText, "ReceiveText")
	c.Register(isCargoTheft, cargoStolen, "EjectCargo")
	c.Register(nil, func(e *event) { e.run.Cmdr.CombatRank = int(e.f.Int("Combat")) }, "Rank")
	c.Register(nil, func(e *event) { e.run.Cmdr.CombatProgr = int(e.f.Int("Combat")) }, "Progress")
	c.Register(func(e *event) bool { return e.Has("Active") && !e.run.MissionsLoaded }, missionsSnapshot, "Missions")
	c.Register(func(e *event) bool { return e.run.MissionsLoaded && isMassacre(e) }, missionAccepted, "MissionAccepted")
	c.Register(isTrackedMission, missionResolved, "MissionAbandoned", "MissionCompleted", "MissionFailed")
	c.Register(nil, merits, "PowerplayMerits")
	c.Register(func(e *event) bool { return e.StrOr("BodyType", "") == "PlanetaryRing" }, func(e *event) { e.tr.StartSession(false) }, "Location")
	c.Register(nil, shutdown, "Shutdown")
	c.Register(nil, leftSite, "SupercruiseEntry", "FSDJump")
}

func isSecurityScan(e *event) bool {
	if !e.Has("Ship") || !e.Contains("PilotName", "$ShipName_Police") {
		return false
	}
	return e.f.Localised("Ship", e.titled) != e.s.LastSecurity
}

func securityScan(e *event) {
	ship := e.f.Localised("Ship", e.titled)
	e.s.LastSecurity = ship
	n := e.note(notify.SecurityScan, "🚨", fmt.Sprintf("Scanned security (%s)", ship))
	n.Highlight, n.Tone = "Scanned security", notify.ToneWarn
	n.Remote = fmt.Sprintf("**Scanned security** (%s)", ship)
	e.emit(n)
}

func isCombatScan(e *event) bool {
	raw := strings.ToLower(e.StrOr("Ship", ""))
	if ShipTier(raw) == TierNone {
		return false
	}
	return !e.s.Scanned(e.f.Localised("Ship", e.titled))
}

func combatScan(e *event) {
	ship := e.f.Localised("Ship", e.titled)
	rank := ""
	if r := e.StrOr("PilotRank", ""); r != "" {
		rank = " (" + r + ")"
	}
	e.tr.StartSession(false)
	e.s.Scans = append(e.s.Scans, ship)

	category, tone, skull := notify.ScanEasy, notify.ToneEasy, ""
	if ShipTier(strings.ToLower(e.f.Str("Ship"))) == TierHard {
		category, tone, skull = notify.ScanHard, notify.ToneHard, " ☠️"
	}
	n := e.note(category, "🔎", "Scan: "+ship+rank)
	n.Highlight, n.Tone = "Scan", tone
	n.Remote = "**" + ship + "**" + skull + rank
	e.emit(n)
}

// bountyReward prefers the voucher total and falls back to summing the
// per-faction rewards.
func bountyReward(e *event) int64 {
	if e.Has("TotalReward") {
		return e.f.Int("TotalReward")
	}
	if e.Has("Rewards") {
		var sum int64
		e.f.Each("Rewards", func(r *journal.Fields) { sum += r.Int("Reward") })
		return sum
	}
	return e.f.Int("Reward")
}

func kill(e *event) {
	var (
		ship     string
		reward   int64
		killType = state.KillTypeBounties
		category = notify.KillEasy
		tone     = notify.ToneNone
		skull    string
	)
	if e.Kind == "Bounty" {
		switch ShipTier(strings.ToLower(e.f.Str("Target"))) {
		case TierEasy:
			tone = notify.ToneEasy
		case TierHard:
			category, tone, skull = notify.KillHard, notify.ToneHard, " ☠️"
		}
		reward = bountyReward(e)
		ship = e.f.Localised("Target", e.titled)
	} else {
		reward = e.f.Int("Reward")
		ship = "Bond"
		killType = state.KillTypeBonds
	}
	faction := e.f.Localised("VictimFaction", nil)
	if e.f.Err() != nil {
		return
	}

	interval, ok := e.tr.RecordKill(e.at, reward, killType)
	gap := ""
	if ok {
		gap = " (+" + metrics.FormatDuration(interval) + ")"
	}
	count, countRemote := "", ""
	if e.c.Settings.ExtendedStats {
		count = fmt.Sprintf(" x%d", e.s.Kills)
		countRemote = fmt.Sprintf("x%d ", e.s.Kills)
	}
	value := ""
	if e.c.Settings.BountyValue {
		value = " [" + metrics.FormatMagnitude(float64(reward)) + " cr]"
	}
	victim := ""
	if e.c.Settings.BountyFaction {
		victim = " [" + truncate(faction, factionMax) + "]"
	}

	n := e.note(category, "💥", "Kill"+count+": "+ship+gap+value+victim)
	n.Highlight, n.Tone = "Kill", tone
	n.Remote = countRemote + "**" + ship + skull + gap + "**" + value + victim
	e.emit(n)

	if e.s.Kills%rollupEvery == 0 {
		recent := ""
		if e.c.Settings.ExtendedStats {
			recent = recentRate(e.s)
		}
		for _, r := range Rollup(Totals{
			Label:    "Session",
			Kills:    e.s.Kills,
			Between:  e.s.KillsTime,
			Income:   e.s.Bounties,
			Merits:   e.s.Merits,
			KillType: e.run.KillType,
			Recent:   recent,
		}, e.c.Sev) {
			e.emit(r)
		}
	}
}

// truncate shortens long faction names, leaving a little slack so a name
// is never cut by only a character or two.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max+3 {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:max]), " ") + "..."
}

func isMassacre(e *event) bool { return e.Contains("Name", "Mission_Massacre") }

func missionRedirected(e *event) {
	done, active, all := e.run.RedirectMission()
	progress := fmt.Sprintf("(%d/%d)", done, active)
	if all {
		n := e.note(notify.MissionsAll, "✅", "Completed kills for all missions! "+progress)
		n.Tone, n.Highlight = notify.ToneGood, "Completed kills for all missions!"
		e.emit(n)
		return
	}
	e.emit(e.note(notify.Missions, "✅", "Completed kills for a mission "+progress))
}

func fuel(e *event) {
	remaining := e.f.Float("FuelMain")
	if e.f.Err() != nil {
		return
	}
	capacity := e.run.FuelCapacity
	pct := metrics.Percent(remaining, capacity)

	projection := ""
	last := e.s.Fuel
	if !last.At.IsZero() && e.run.Deployed() && e.at.After(last.At) {
		if d, ok := metrics.BurnProjection(last.Remaining, remaining, e.at.Sub(last.At)); ok {
			projection = " (~" + metrics.FormatDuration(d) + ")"
		}
	}
	e.s.Fuel = state.FuelReading{At: e.at, Remaining: remaining}

	var (
		category = notify.FuelReport
		level    = ":"
		tone     = notify.ToneNone
	)
	switch {
	case remaining < capacity*fuelCritical:
		category, level, tone = notify.FuelCritical, " critical!", notify.ToneBad
	case remaining < capacity*fuelLow:
		category, level, tone = notify.FuelLow, " low:", notify.ToneWarn
	}
	head := fmt.Sprintf("Fuel: %d%% remaining", pct)
	n := e.note(category, "⛽", head+projection)
	if category == notify.FuelReport && !e.run.Deployed() {
		n.Severity = notify.Silent
	}
	n.Highlight, n.Tone = head, tone
	n.Remote = fmt.Sprintf("**Fuel%s %d%% remaining**%s", level, pct, projection)
	e.emit(n)
}

func fighterDestroyed(e *event) {
	n := e.note(notify.FighterDown, "🕹️", "Fighter destroyed!")
	n.Highlight, n.Tone = n.Terminal, notify.ToneBad
	e.emit(n)
}

func fighterLaunched(e *event) {
	e.emit(e.note(notify.FighterLaunch, "🕹️", "Fighter launched"))
}

func shieldState(e *event) {
	up := e.f.Bool("ShieldsUp")
	if e.f.Err() != nil {
		return
	}
	text, tone := "Ship shields down!", notify.ToneBad
	if up {
		text, tone = "Ship shields back up", notify.ToneGood
	}
	n := e.note(notify.ShipShields, "🛡️", text)
	n.Highlight, n.Tone = text, tone
	e.emit(n)
}

func hullDamage(e *event) {
	health := e.f.Float("Health")
	fighter := e.f.Bool("Fighter")
	player := e.f.Bool("PlayerPilot")
	if e.f.Err() != nil {
		return
	}
	integrity := fmt.Sprintf(" (Integrity: %d%%)", metrics.Percent(health, 1))
	switch {
	case fighter && !player:
		if e.run.FighterHull == health {
			return
		}
		e.run.FighterHull = health
		n := e.note(notify.FighterHull, "🕹️", "Fighter hull damaged!"+integrity)
		n.Highlight, n.Tone = "Fighter hull damaged!", notify.ToneWarn
		n.Remote = "**Fighter hull damaged!**" + integrity
		e.emit(n)
	case player && !fighter:
		n := e.note(notify.ShipHull, "🛠️", "Ship hull damaged!"+integrity)
		n.Highlight, n.Tone = "Ship hull damaged!", notify.ToneBad
		n.Remote = "**Ship hull damaged!**" + integrity
		e.emit(n)
	}
}

func died(e *event) {
	n := e.note(notify.Died, "💀", "Ship destroyed!")
	n.Highlight, n.Tone = n.Terminal, notify.ToneBad
	e.emit(n)
}

func mainMenu(e *event) {
	e.tr.EndSession()
	e.emit(e.note(notify.Game, "🚪", "Exited to main menu"))
}

func commander(e *event) {
	e.run.Cmdr.Name = e.f.Str("Name")
}

func loadGame(e *event) {
	name := e.f.Str("Commander")
	ship := e.f.Localised("Ship", nil)
	mode := e.f.Str("GameMode")
	if e.f.Err() != nil {
		return
	}
	e.run.Cmdr.Name = name
	if mode == "Group" {
		mode = "Private"
	}
	detail := ship + " / " + mode
	if r := e.run.Cmdr.CombatRank; r >= 0 && r < len(CombatRanks) {
		detail += " / " + CombatRanks[r]
		if p := e.run.Cmdr.CombatProgr; p >= 0 && r < len(CombatRanks)-1 {
			detail += fmt.Sprintf(" +%d%%", p)
		}
	}
	n := e.note(notify.Game, "🔄", fmt.Sprintf("Loaded CMDR %s (%s)", name, detail))
	n.Remote = fmt.Sprintf("**Loaded CMDR %s** (%s)", name, detail)
	e.emit(n)
}

func loadout(e *event) {
	var main float64
	e.f.In("FuelCapacity", func(f *journal.Fields) { main = f.Float("Main") })
	if e.f.Err() != nil {
		return
	}
	if main < 2 {
		main = e.c.Settings.FuelFallback
	}
	if main < 2 {
		main = state.DefaultFuelCapacity
	}
	e.run.FuelCapacity = main
}

func isCombatDrop(e *event) bool {
	t := e.StrOr("Type", "")
	return strings.Contains(t, "$MULTIPLAYER") || strings.Contains(t, "$Warzone")
}

func destinationDrop(e *event) {
	site := e.f.Localised("Type", nil)
	if e.f.Err() != nil {
		return
	}
	e.tr.StartSession(true)
	e.emit(e.note(notify.Travel, "🚀", "Dropped at "+site))
}

func npcText(e *event) {
	msg := e.f.Str("Message")
	if slices.ContainsFunc(BaitMessages, func(k string) bool { return strings.Contains(msg, k) }) {
		e.s.BaitFails++
		extra := ""
		if e.c.Settings.ExtendedStats {
			extra = fmt.Sprintf(" (x%d)", e.s.BaitFails)
		}
		const text = "Pirate didn't engage due to insufficient cargo value"
		n := e.note(notify.BaitValueLow, "🎣", text+extra)
		n.Highlight, n.Tone = text, notify.ToneWarn
		n.Remote = "**" + text + "**" + extra
		n.DedupKey = notify.BaitValueLow
		e.emit(n)
		return
	}
	if strings.Contains(msg, "Police_Attack") {
		n := e.note(notify.SecurityAttack, "🚨", "Under attack by security services!")
		n.Highlight, n.Tone = n.Terminal, notify.ToneBad
		e.emit(n)
	}
}

func isCargoTheft(e *event) bool {
	return !e.BoolOr("Abandoned", true) && e.Has("Count") && e.Read().Int("Count") == 1
}

func cargoStolen(e *event) {
	name := e.f.Localised("Type", e.titled)
	if e.f.Err() != nil {
		return
	}
	n := e.note(notify.CargoLost, "📦", "Cargo stolen! ("+name+")")
	n.Highlight, n.Tone = "Cargo stolen!", notify.ToneBad
	n.Remote = "**Cargo stolen!** (" + name + ")"
	n.DedupKey = notify.CargoLost
	e.emit(n)
}

func missionsSnapshot(e *event) {
	var ids []int64
	e.f.Each("Active", func(m *journal.Fields) {
		name, expires, id := m.Str("Name"), m.Float("Expires"), m.Int("MissionID")
		if strings.Contains(name, "Mission_Massacre") && expires > 0 {
			ids = append(ids, id)
		}
	})
	if e.f.Err() != nil {
		return
	}
	e.run.LoadMissions(ids)
	e.emit(e.note(notify.Missions, "🎯", fmt.Sprintf("Missions loaded (active massacres: %d)", len(e.run.MissionsActive))))
}

func missionAccepted(e *event) {
	id := e.f.Int("MissionID")
	if e.f.Err() != nil {
		return
	}
	e.run.AcceptMission(id)
	e.emit(e.note(notify.Missions, "🎯", fmt.Sprintf("Accepted massacre mission (active: %d)", len(e.run.MissionsActive))))
}

func isTrackedMission(e *event) bool {
	if !e.run.MissionsLoaded || !e.Has("MissionID") {
		return false
	}
	return slices.Contains(e.run.MissionsActive, e.Read().Int("MissionID"))
}

func missionResolved(e *event) {
	e.run.ResolveMission(e.f.Int("MissionID"))
	outcome := strings.ToLower(strings.TrimPrefix(e.Kind, "Mission"))
	e.emit(e.note(notify.Missions, "🎯", fmt.Sprintf("Massacre mission %s (active: %d)", outcome, len(e.run.MissionsActive))))
}

func merits(e *event) {
	gained := e.f.Int("MeritsGained")
	power := e.f.Str("Power")
	if e.f.Err() != nil || e.s.MeritsToReport <= 0 || gained >= maxMeritsGain {
		return
	}
	e.tr.AddMerits(gained)
	e.s.MeritsToReport--
	e.emit(e.note(notify.Merits, "🎫", fmt.Sprintf("Merits: +%d (%s)", gained, power)))
}

func shutdown(e *event) {
	e.emit(e.note(notify.Game, "🛑", "Quit to desktop"))
	e.stop = true
}

func leftSite(e *event) {
	system := e.f.Str("StarSystem")
	if e.f.Err() != nil {
		return
	}
	verb := "FSD jump to"
	if e.Kind == "SupercruiseEntry" {
		verb = "Supercruise entry in"
	}
	e.emit(e.note(notify.Travel, "🚀", verb+" "+system))
	e.tr.EndSession()
}
