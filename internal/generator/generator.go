// Package generator produces synthetic Windows Security exports for demos,
// load tests and pipeline smoke tests. Output uses the same {"result": {...}}
// envelope as a Splunk JSON export, so it feeds straight back into analyze.
package generator

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// TimeLayout matches the _time format of WinEventLog exports.
const TimeLayout = "2006-01-02T15:04:05.000-0700"

// Config controls a generation run.
type Config struct {
	Count     int           // background events
	Seed      int64         // 0 picks a random seed
	Start     time.Time     // zero means Now minus Spread
	Spread    time.Duration // window the events are spread across
	Hosts     int
	Users     int
	Scenarios []string // attack scenarios to inject, by name
}

// DefaultConfig returns a small mixed run of one hour of traffic.
func DefaultConfig() Config {
	return Config{
		Count:  500,
		Spread: time.Hour,
		Hosts:  8,
		Users:  20,
	}
}

// Generator builds event sets from a seeded faker, so a fixed seed always
// yields identical output.
type Generator struct {
	cfg   Config
	faker *gofakeit.Faker
	hosts []string
	users []string
	ips   []string
}

// event is a generated record before envelope wrapping.
type event struct {
	at     time.Time
	fields map[string]any
}

// New validates cfg and prepares host and user pools.
func New(cfg Config) (*Generator, error) {
	if cfg.Count < 0 {
		return nil, fmt.Errorf("generator: count must be >= 0, got %d", cfg.Count)
	}
	if cfg.Spread <= 0 {
		cfg.Spread = time.Hour
	}
	if cfg.Hosts < 1 {
		cfg.Hosts = 1
	}
	if cfg.Users < 1 {
		cfg.Users = 1
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC().Add(-cfg.Spread).Truncate(time.Second)
	}
	for _, name := range cfg.Scenarios {
		if _, ok := scenarios[name]; !ok {
			return nil, fmt.Errorf("generator: unknown scenario %q (available: %s)",
				name, strings.Join(ScenarioNames(), ", "))
		}
	}

	g := &Generator{cfg: cfg, faker: gofakeit.New(cfg.Seed)}
	for i := 0; i < cfg.Hosts; i++ {
		g.hosts = append(g.hosts, g.hostname(i))
	}
	for i := 0; i < cfg.Users; i++ {
		g.users = append(g.users, g.username())
	}
	for i := 0; i < cfg.Hosts*2; i++ {
		g.ips = append(g.ips, g.faker.IPv4Address())
	}
	return g, nil
}

// Generate returns background traffic plus the configured scenarios, sorted
// by time and wrapped in export envelopes.
func (g *Generator) Generate() []map[string]any {
	events := make([]event, 0, g.cfg.Count)
	for i := 0; i < g.cfg.Count; i++ {
		events = append(events, g.background(g.at(i, g.cfg.Count)))
	}
	for i, name := range g.cfg.Scenarios {
		// Scenarios start at evenly spaced offsets so they don't overlap.
		offset := time.Duration(i+1) * g.cfg.Spread / time.Duration(len(g.cfg.Scenarios)+1)
		events = append(events, scenarios[name].generate(g, g.cfg.Start.Add(offset))...)
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	out := make([]map[string]any, len(events))
	for i, ev := range events {
		ev.fields["_time"] = ev.at.Format(TimeLayout)
		ev.fields["RecordNumber"] = strconv.Itoa(100000 + i)
		out[i] = map[string]any{"result": ev.fields}
	}
	return out
}

// WriteJSON writes records as a single JSON array, the layout of a Splunk
// export file.
func WriteJSON(w io.Writer, records []map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("generator: encode: %w", err)
	}
	return nil
}

// WriteNDJSON writes one record per line, the layout the tail connector
// expects.
func WriteNDJSON(w io.Writer, records []map[string]any) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("generator: encode: %w", err)
		}
	}
	return nil
}

// at spreads n events across the window with per-event jitter.
func (g *Generator) at(i, n int) time.Time {
	step := g.cfg.Spread / time.Duration(n+1)
	jitter := time.Duration(g.faker.Float64() * float64(step))
	return g.cfg.Start.Add(time.Duration(i)*step + jitter).Truncate(time.Millisecond)
}

func (g *Generator) hostname(i int) string {
	prefix := g.faker.RandomString([]string{"WS", "LT", "SRV"})
	return fmt.Sprintf("%s-%03d.corp.local", prefix, i+g.faker.Number(1, 899))
}

func (g *Generator) username() string {
	first := strings.ToLower(g.faker.FirstName())
	last := strings.ToLower(g.faker.LastName())
	if first == "" || last == "" {
		return g.faker.Username()
	}
	return first[:1] + strings.ReplaceAll(last, " ", "")
}

func (g *Generator) host() string { return g.faker.RandomString(g.hosts) }
func (g *Generator) user() string { return g.faker.RandomString(g.users) }
func (g *Generator) ip() string   { return g.faker.RandomString(g.ips) }

// record builds the fields shared by every Security log entry.
func (g *Generator) record(code int, computer, user string, failure bool) map[string]any {
	keywords := "Audit Success"
	if failure {
		keywords = "Audit Failure"
	}
	return map[string]any{
		"EventCode":    strconv.Itoa(code),
		"ComputerName": computer,
		"user":         user,
		"Account_Name": user,
		"LogName":      "Security",
		"SourceName":   "Microsoft Windows security auditing.",
		"Keywords":     keywords,
		"sourcetype":   "WinEventLog:Security",
	}
}

func (g *Generator) logon(at time.Time, computer, user, logonType string) event {
	f := g.record(4624, computer, user, false)
	f["Logon_Type"] = logonType
	f["Source_Network_Address"] = g.ip()
	return event{at: at, fields: f}
}

func (g *Generator) process(at time.Time, computer, user, image string) event {
	f := g.record(4688, computer, user, false)
	f["New_Process_Name"] = image
	f["Creator_Process_Name"] = `C:\Windows\explorer.exe`
	return event{at: at, fields: f}
}

var benignImages = []string{
	`C:\Windows\System32\svchost.exe`,
	`C:\Windows\explorer.exe`,
	`C:\Windows\System32\notepad.exe`,
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files\Microsoft Office\root\Office16\OUTLOOK.EXE`,
	`C:\Windows\System32\taskhostw.exe`,
	`C:\Windows\System32\conhost.exe`,
}

var benignCodes = []int{4689, 7036, 5156, 4663, 4776, 4768, 4769, 4798, 5140, 4656, 4703}

// background draws one routine event. Roughly a third are logons, a fifth
// process starts, and the rest low-signal audit noise.
func (g *Generator) background(at time.Time) event {
	computer, user := g.host(), g.user()
	switch roll := g.faker.Number(1, 100); {
	case roll <= 30:
		lt := g.faker.RandomString([]string{"2", "2", "5", "7", "3"})
		return g.logon(at, computer, user, lt)
	case roll <= 50:
		return g.process(at, computer, user, g.faker.RandomString(benignImages))
	case roll <= 53:
		f := g.record(4625, computer, user, true)
		f["Logon_Type"] = "2"
		f["Failure_Reason"] = "Unknown user name or bad password."
		return event{at: at, fields: f}
	default:
		code := benignCodes[g.faker.Number(0, len(benignCodes)-1)]
		return event{at: at, fields: g.record(code, computer, user, false)}
	}
}
