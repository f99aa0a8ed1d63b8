package classifier

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/model"
)

// LOLBins matched against New_Process_Name on process creation.
var suspiciousProcesses = []string{"powershell", "cmd", "wscript", "cscript", "mshta", "rundll32"}

// Logon types 3 (network) and 10 (remote interactive).
var remoteLogonTypes = []string{"3", "10"}

// DefaultHeuristics returns the built-in heuristics in evaluation order.
func DefaultHeuristics() []Heuristic {
	return []Heuristic{
		SuspiciousProcess{Names: suspiciousProcesses},
		RemoteLogon{Types: remoteLogonTypes},
	}
}

// SuspiciousProcess flags process creation of interpreters and loaders
// commonly abused for living-off-the-land execution.
type SuspiciousProcess struct {
	Names []string
}

func (SuspiciousProcess) Name() string { return "suspicious_process" }

func (h SuspiciousProcess) Evaluate(rec model.Record) (Hit, bool) {
	if rec.EventID != catalog.EventProcessCreation || rec.ProcessName == "" {
		return Hit{}, false
	}
	// Caser is stateful, so one per call.
	folded := cases.Fold().String(rec.ProcessName)
	for _, n := range h.Names {
		if strings.Contains(folded, n) {
			return Hit{Score: 2, Reason: fmt.Sprintf("Suspicious process: %s", rec.ProcessName)}, true
		}
	}
	return Hit{}, false
}

// RemoteLogon flags successful network and remote-interactive logons.
type RemoteLogon struct {
	Types []string
}

func (RemoteLogon) Name() string { return "remote_logon" }

func (h RemoteLogon) Evaluate(rec model.Record) (Hit, bool) {
	if rec.EventID != catalog.EventSuccessfulLogon || !slices.Contains(h.Types, rec.LogonType) {
		return Hit{}, false
	}
	return Hit{Score: 1, Reason: fmt.Sprintf("Remote logon (Type %s)", rec.LogonType)}, true
}
