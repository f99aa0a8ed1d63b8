package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/engine"
	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/engine/classifier"
	"github.com/crimson-sun/sectriage/internal/model"
	"github.com/crimson-sun/sectriage/internal/report"
)

// --- mocks ---

// mockConnector is a minimal connector that sends pre-loaded events.
type mockConnector struct {
	events   []model.RawEvent
	queryErr error
	hold     bool // keep the stream open until ctx is done
}

func (m *mockConnector) Stream(ctx context.Context, _ connector.ConnectorConfig) (<-chan model.RawEvent, error) {
	ch := make(chan model.RawEvent, len(m.events))
	for _, raw := range m.events {
		ch <- raw
	}
	if !m.hold {
		close(ch)
		return ch, nil
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (m *mockConnector) Query(_ context.Context, _ connector.ConnectorConfig, _ connector.QueryParams) ([]model.RawEvent, error) {
	return m.events, m.queryErr
}

type mockOutput struct {
	mu       sync.Mutex
	findings []model.Finding
	err      error
	flushes  atomic.Int64
	closed   bool
}

func (m *mockOutput) Write(_ context.Context, f model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.findings = append(m.findings, f)
	return nil
}

func (m *mockOutput) Flush() error {
	m.flushes.Add(1)
	return nil
}

func (m *mockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockOutput) Findings() []model.Finding {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]model.Finding, len(m.findings))
	copy(cp, m.findings)
	return cp
}

func newEngine() *engine.Engine {
	cat := catalog.Default()
	return engine.New(cat, classifier.New(cat))
}

func event(fields map[string]any) model.RawEvent {
	return model.RawEvent{Received: time.Now(), Source: "mock", Fields: map[string]any{"result": fields}}
}

func sampleEvents() []model.RawEvent {
	return []model.RawEvent{
		event(map[string]any{"EventCode": "4625", "ComputerName": "DC01", "user": "admin"}),
		event(map[string]any{"EventCode": "4608", "ComputerName": "DC01"}),
		event(map[string]any{"ComputerName": "DC01"}),
		event(map[string]any{"EventCode": "4624", "ComputerName": "WS01", "user": "bob", "Logon_Type": "10"}),
		event(map[string]any{"EventCode": "4688", "ComputerName": "WS01", "user": "bob", "New_Process_Name": `C:\Windows\System32\cmd.exe`}),
	}
}

// --- tests ---

func TestQueryWritesFindingsInOrder(t *testing.T) {
	out := &mockOutput{}
	p := New(&mockConnector{events: sampleEvents()}, newEngine(), out)

	if err := p.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err != nil {
		t.Fatalf("Query error: %v", err)
	}

	got := out.Findings()
	if len(got) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(got))
	}
	wantIDs := []int{4625, 4624, 4688}
	wantScores := []int{3, 2, 4}
	for i, f := range got {
		if f.EventID != wantIDs[i] || f.Score != wantScores[i] {
			t.Errorf("finding %d = (%d, %d), want (%d, %d)", i, f.EventID, f.Score, wantIDs[i], wantScores[i])
		}
	}

	r := p.Report()
	if r.RunID != p.RunID() || r.RunID == "" {
		t.Errorf("report run id %q, pipeline run id %q", r.RunID, p.RunID())
	}
	if r.Input.Records != 5 || r.Input.Skipped != 1 || r.TotalFindings != 3 {
		t.Errorf("unexpected report input stats: %+v findings=%d", r.Input, r.TotalFindings)
	}
	if len(r.HighRisk) != 2 {
		t.Errorf("expected 2 high-risk findings, got %d", len(r.HighRisk))
	}
}

func TestQueryParallelMatchesSequential(t *testing.T) {
	var raws []model.RawEvent
	for i := 0; i < 200; i++ {
		raws = append(raws, sampleEvents()...)
	}

	seqOut := &mockOutput{}
	seq := New(&mockConnector{events: raws}, newEngine(), seqOut)
	parOut := &mockOutput{}
	par := New(&mockConnector{events: raws}, newEngine(), parOut, WithWorkers(8))

	if err := seq.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err != nil {
		t.Fatal(err)
	}
	if err := par.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err != nil {
		t.Fatal(err)
	}

	a, b := seqOut.Findings(), parOut.Findings()
	if len(a) != len(b) {
		t.Fatalf("sequential %d findings, parallel %d", len(a), len(b))
	}
	for i := range a {
		if a[i].EventID != b[i].EventID || a[i].Score != b[i].Score {
			t.Fatalf("finding %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestQueryConnectorError(t *testing.T) {
	p := New(&mockConnector{queryErr: errors.New("boom")}, newEngine(), &mockOutput{})
	err := p.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "pipeline query: boom" {
		t.Fatalf("unexpected error: %q", got)
	}
}

func TestQueryOutputError(t *testing.T) {
	out := &mockOutput{err: errors.New("disk full")}
	p := New(&mockConnector{events: sampleEvents()}, newEngine(), out)
	err := p.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{})
	if err == nil {
		t.Fatal("expected output error")
	}
}

func TestStreamUntilExhausted(t *testing.T) {
	out := &mockOutput{}
	p := New(&mockConnector{events: sampleEvents()}, newEngine(), out)

	if err := p.Stream(context.Background(), connector.ConnectorConfig{}); err != nil {
		t.Fatalf("Stream error: %v", err)
	}
	if n := len(out.Findings()); n != 3 {
		t.Fatalf("expected 3 findings, got %d", n)
	}
	if out.flushes.Load() == 0 {
		t.Error("expected a final flush when the stream ends")
	}
	if s := p.Report().Input; s.Records != 5 || s.Clean != 1 {
		t.Errorf("unexpected input stats: %+v", s)
	}
}

func TestStreamCancel(t *testing.T) {
	out := &mockOutput{}
	p := New(&mockConnector{events: sampleEvents(), hold: true}, newEngine(), out,
		WithFlushInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Stream(ctx, connector.ConnectorConfig{}) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not return after cancel")
	}
	if n := len(out.Findings()); n != 3 {
		t.Fatalf("expected 3 findings, got %d", n)
	}
	if out.flushes.Load() < 2 {
		t.Errorf("expected periodic flushes, got %d", out.flushes.Load())
	}
}

func TestReportOptionsApplied(t *testing.T) {
	p := New(&mockConnector{events: sampleEvents()}, newEngine(), &mockOutput{},
		WithReportOptions(report.Options{TopN: 1, HighRiskLimit: 1}))
	if err := p.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err != nil {
		t.Fatal(err)
	}
	r := p.Report()
	if len(r.TopEvents) != 1 || len(r.HighRisk) != 1 {
		t.Fatalf("report options not applied: top=%d high=%d", len(r.TopEvents), len(r.HighRisk))
	}
}

func TestCloseClosesOutput(t *testing.T) {
	out := &mockOutput{}
	p := New(&mockConnector{}, newEngine(), out)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !out.closed {
		t.Fatal("output not closed")
	}
}

func TestRunIDsUnique(t *testing.T) {
	a := New(&mockConnector{}, newEngine(), &mockOutput{})
	b := New(&mockConnector{}, newEngine(), &mockOutput{})
	if a.RunID() == b.RunID() {
		t.Fatal("expected distinct run ids")
	}
}
