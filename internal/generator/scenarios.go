package generator

import (
	"sort"
	"time"
)

// scenario injects a short burst of related events modelled on a known
// attacker technique.
type scenario struct {
	name        string
	description string
	generate    func(g *Generator, start time.Time) []event
}

var scenarios = map[string]scenario{}

func register(s scenario) { scenarios[s.name] = s }

// ScenarioNames lists the registered scenarios, sorted.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line description of a scenario.
func Describe(name string) (string, bool) {
	s, ok := scenarios[name]
	return s.description, ok
}

func init() {
	register(scenario{
		name:        "brute-force",
		description: "T1110.001 password guessing: failed logons, a lockout, then a network logon",
		generate:    bruteForce,
	})
	register(scenario{
		name:        "lateral-movement",
		description: "T1021.001 RDP with explicit credentials, privilege assignment and a PowerShell launch",
		generate:    lateralMovement,
	})
	register(scenario{
		name:        "persistence",
		description: "T1136.001 local account creation and admin group membership",
		generate:    persistence,
	})
	register(scenario{
		name:        "defense-evasion",
		description: "T1070.001 wevtutil run from cmd followed by a Security log clear",
		generate:    defenseEvasion,
	})
}

func bruteForce(g *Generator, start time.Time) []event {
	computer, user := g.host(), g.user()
	attempts := g.faker.Number(8, 15)
	events := make([]event, 0, attempts+2)
	at := start
	for i := 0; i < attempts; i++ {
		f := g.record(4625, computer, user, true)
		f["Logon_Type"] = "3"
		f["Failure_Reason"] = "Unknown user name or bad password."
		f["Source_Network_Address"] = g.ip()
		events = append(events, event{at: at, fields: f})
		at = at.Add(time.Duration(g.faker.Number(200, 1500)) * time.Millisecond)
	}
	events = append(events, event{at: at, fields: g.record(4740, computer, user, false)})
	events = append(events, g.logon(at.Add(2*time.Minute), computer, user, "3"))
	return events
}

func lateralMovement(g *Generator, start time.Time) []event {
	src, dst, user := g.host(), g.host(), g.user()

	explicit := g.record(4648, src, user, false)
	explicit["Target_Server_Name"] = dst

	privs := g.record(4672, dst, user, false)
	privs["Privileges"] = "SeDebugPrivilege"

	return []event{
		{at: start, fields: explicit},
		g.logon(start.Add(time.Second), dst, user, "10"),
		{at: start.Add(2 * time.Second), fields: privs},
		g.process(start.Add(30*time.Second), dst, user,
			`C:\Windows\System32\WindowsPowerShell\v1.0\powershell.exe`),
		g.process(start.Add(45*time.Second), dst, user, `C:\Windows\System32\rundll32.exe`),
	}
}

func persistence(g *Generator, start time.Time) []event {
	computer, admin := g.host(), g.user()
	backdoor := "svc_" + g.faker.LetterN(6)

	created := g.record(4720, computer, admin, false)
	created["Target_Account_Name"] = backdoor

	added := g.record(4732, computer, admin, false)
	added["Group_Name"] = "Administrators"
	added["Member_Name"] = backdoor

	return []event{
		{at: start, fields: created},
		{at: start.Add(3 * time.Second), fields: added},
		{at: start.Add(4 * time.Second), fields: g.record(4735, computer, admin, false)},
	}
}

func defenseEvasion(g *Generator, start time.Time) []event {
	computer, user := g.host(), g.user()

	cmd := g.process(start, computer, user, `C:\Windows\System32\cmd.exe`)
	cmd.fields["Process_Command_Line"] = `cmd.exe /c wevtutil cl Security`

	return []event{
		cmd,
		{at: start.Add(time.Second), fields: g.record(1102, computer, user, false)},
	}
}
