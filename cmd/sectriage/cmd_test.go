package main

import (
	"bufio"
	"bytes"
	stdcsv "encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/sectriage/internal/output/csv"
)

const sampleExport = `[
  {"result": {"EventCode": "4625", "_time": "2016-08-24T09:00:00.000+0000", "ComputerName": "WIN-DC01", "user": "admin"}},
  {"result": {"EventCode": "4688", "_time": "2016-08-24T09:00:05.000+0000", "ComputerName": "WS-01", "user": "bob", "New_Process_Name": "C:\\Windows\\System32\\cmd.exe"}},
  {"result": {"EventCode": "4624", "_time": "2016-08-24T09:01:00.000+0000", "ComputerName": "WS-01", "user": "bob", "Logon_Type": "10"}},
  {"result": {"EventCode": "4733", "ComputerName": "WS-01", "user": "bob"}},
  {"result": {"ComputerName": "WS-01"}}
]`

// run executes the CLI in an empty working directory so no stray config
// file is picked up.
func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cmd := newRootCmd()
	var out, errb bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errb)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err = cmd.Execute()
	return out.String(), errb.String(), err
}

func writeSample(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	t.Chdir(dir)
	path = filepath.Join(dir, "security.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0o644))
	return dir, path
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"analyze": false, "watch": false, "catalog": false, "generate": false, "config": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "command %q not registered", name)
	}
}

func TestAnalyze_StdoutFindings(t *testing.T) {
	_, path := writeSample(t)

	stdout, stderr, err := run(t, "analyze", path)
	require.NoError(t, err)

	var scores []int
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		var f struct {
			EventID int `json:"event_id"`
			Score   int `json:"suspicious_score"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f), "line: %s", sc.Text())
		scores = append(scores, f.Score)
	}
	assert.Equal(t, []int{3, 4, 2}, scores, "findings keep input order")
	assert.Contains(t, stderr, "=== Summary ===")
}

func TestAnalyze_QuietCSVAndJSONSummary(t *testing.T) {
	dir, path := writeSample(t)
	csvPath := filepath.Join(dir, "suspicious_events.csv")

	stdout, _, err := run(t, "analyze", path, "--quiet", "--csv", csvPath, "--summary", "json")
	require.NoError(t, err)

	var rep struct {
		TotalFindings int `json:"total_findings"`
		Input         struct {
			Records int `json:"records"`
			Skipped int `json:"skipped"`
			Clean   int `json:"clean"`
		} `json:"input"`
		HighRisk []json.RawMessage `json:"high_risk"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep), "stdout: %s", stdout)
	assert.Equal(t, 3, rep.TotalFindings)
	assert.Equal(t, 5, rep.Input.Records)
	assert.Equal(t, 1, rep.Input.Skipped)
	assert.Equal(t, 1, rep.Input.Clean)
	assert.Len(t, rep.HighRisk, 2)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := stdcsv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csv.Header, rows[0])
	assert.Equal(t, "Failed Logon", rows[1][2])
	assert.Equal(t, "High-risk event: Failed Logon", rows[1][6])
	assert.Empty(t, rows[3][7], "score 2 rows carry no raw data")
}

func TestAnalyze_CSVRawDataIsExact(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "security.json")
	export := `[{"result": {"EventCode": "4625", "ComputerName": "WIN-DC01", "user": "admin", "Workstation": "-", "Source_Address": "", "Message": "` +
		strings.Repeat("A", 2500) + `"}}]`
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))
	csvPath := filepath.Join(dir, "out.csv")

	for _, verbosity := range []string{"full", "minimal"} {
		_, _, err := run(t, "analyze", path, "--quiet", "--summary", "none", "--verbosity", verbosity, "--csv", csvPath)
		require.NoError(t, err)

		f, err := os.Open(csvPath)
		require.NoError(t, err)
		rows, err := stdcsv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)
		require.Len(t, rows, 2)

		var raw map[string]any
		require.NoError(t, json.Unmarshal([]byte(rows[1][7]), &raw))
		assert.Len(t, raw, 6, verbosity)
		assert.Equal(t, "-", raw["Workstation"], verbosity)
		assert.Equal(t, "", raw["Source_Address"], verbosity)
		assert.Len(t, raw["Message"], 2500, verbosity)
	}
}

func TestAnalyze_TextFormat(t *testing.T) {
	_, path := writeSample(t)

	stdout, _, err := run(t, "analyze", path, "--format", "text", "--summary", "none")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(stdout, "\n"))
	assert.Contains(t, stdout, "score=4")
}

func TestAnalyze_SinceFilter(t *testing.T) {
	_, path := writeSample(t)

	stdout, _, err := run(t, "analyze", path, "--quiet", "--summary", "json", "--since", "2016-08-24T09:00:30Z")
	require.NoError(t, err)

	var rep struct {
		Input struct {
			Records int `json:"records"`
		} `json:"input"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	// Two timed records fall before --since; untimed records always pass.
	assert.Equal(t, 3, rep.Input.Records)
}

func TestAnalyze_Errors(t *testing.T) {
	_, path := writeSample(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"analyze", "nope.json"}},
		{"bad since", []string{"analyze", path, "--since", "yesterday"}},
		{"until before since", []string{"analyze", path, "--since", "2016-08-25T00:00:00Z", "--until", "2016-08-24T00:00:00Z"}},
		{"bad format", []string{"analyze", path, "--format", "xml"}},
		{"unknown connector", []string{"analyze", "--connector", "kafka"}},
		{"bad rules file", []string{"analyze", path, "--rules", "missing.yaml"}},
		{"bad summary", []string{"analyze", path, "--summary", "html"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestAnalyze_CustomRules(t *testing.T) {
	dir, path := writeSample(t)
	rulesPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`
rules:
  - name: admin_failure
    when: EventID == 4625 && User == "admin"
    score: 2
    reason: "Failed logon for admin"
`), 0o644))

	stdout, _, err := run(t, "analyze", path, "--rules", rulesPath, "--summary", "none")
	require.NoError(t, err)

	first := strings.SplitN(stdout, "\n", 2)[0]
	assert.Contains(t, first, `"suspicious_score":5`)
	assert.Contains(t, first, "Failed logon for admin")
}

func TestCatalog_Formats(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "Failed Logon")

	stdout, _, err = run(t, "catalog", "-o", "json")
	require.NoError(t, err)
	var rows []catalogRow
	require.NoError(t, json.Unmarshal([]byte(stdout), &rows))
	require.NotEmpty(t, rows)
	for _, r := range rows {
		if r.ID == 4625 {
			assert.Equal(t, "high", r.Tier)
			assert.Equal(t, 3, r.Score)
		}
	}

	stdout, _, err = run(t, "catalog", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "event_id: 4625")

	_, _, err = run(t, "catalog", "-o", "xml")
	assert.Error(t, err)
}

func TestGenerateThenAnalyze(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	sample := filepath.Join(dir, "sample.ndjson")

	_, stderr, err := run(t, "generate", "--count", "50", "--seed", "7", "--ndjson",
		"--scenario", "brute-force", "--start", "2016-08-24T09:00:00Z", "--out", sample)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote")

	stdout, _, err := run(t, "analyze", sample, "--quiet", "--summary", "json")
	require.NoError(t, err)

	var rep struct {
		TotalFindings int `json:"total_findings"`
		TopEvents     []struct {
			EventID int `json:"event_id"`
		} `json:"top_events"`
		Bursts []struct {
			EventID int `json:"event_id"`
		} `json:"bursts"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Positive(t, rep.TotalFindings)

	var burstIDs []int
	for _, b := range rep.Bursts {
		burstIDs = append(burstIDs, b.EventID)
	}
	assert.Contains(t, burstIDs, 4625, "brute force shows up as a burst of failed logons")
}

func TestGenerate_List(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := run(t, "generate", "--list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "brute-force")
	assert.Contains(t, stdout, "persistence")
}

func TestConfig_PrintsYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sectriage.yaml"),
		[]byte("connector:\n  api_key: topsecret\nreport:\n  top_n: 7\n"), 0o644))

	stdout, _, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, stdout, "top_n: 7")
	assert.NotContains(t, stdout, "topsecret")
}

func TestConfig_InvalidFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, _, err := run(t, "--config", "missing.yaml", "catalog")
	assert.Error(t, err)
}
