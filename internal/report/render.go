package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// WriteJSON writes r as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	return nil
}

// WriteText writes r as a human-readable summary.
func WriteText(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "=== Summary ===")
	if r.RunID != "" {
		fmt.Fprintf(tw, "Run:\t%s\n", r.RunID)
	}
	fmt.Fprintf(tw, "Records read:\t%d\n", r.Input.Records)
	fmt.Fprintf(tw, "Skipped (no event id):\t%d\n", r.Input.Skipped)
	fmt.Fprintf(tw, "Distinct event codes:\t%d\n", r.Input.EventCodes)
	fmt.Fprintf(tw, "Distinct computers:\t%d\n", r.Input.Computers)
	fmt.Fprintf(tw, "Distinct users:\t%d\n", r.Input.Users)
	if !r.Input.First.IsZero() {
		fmt.Fprintf(tw, "Time range:\t%s to %s\n",
			r.Input.First.UTC().Format(time.RFC3339), r.Input.Last.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "Total findings:\t%d\n", r.TotalFindings)
	fmt.Fprintf(tw, "Unique event IDs:\t%d\n", r.EventIDs)
	fmt.Fprintf(tw, "Hosts involved:\t%d\n", r.Hosts)
	fmt.Fprintf(tw, "Users involved:\t%d\n", r.Users)

	if len(r.TopEvents) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "=== Top events ===")
		fmt.Fprintln(tw, "ID\tNAME\tCOUNT")
		for _, e := range r.TopEvents {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", e.EventID, e.EventName, e.Count)
		}
	}

	if len(r.HighRisk) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "=== High-risk findings ===")
		fmt.Fprintln(tw, "TIME\tID\tNAME\tCOMPUTER\tUSER\tSCORE\tREASONS")
		for _, f := range r.HighRisk {
			ts := "-"
			if !f.Timestamp.IsZero() {
				ts = f.Timestamp.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
				ts, f.EventID, f.EventName, f.Computer, f.User, f.Score, f.ReasonText())
		}
	}

	if len(r.Bursts) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "=== Bursts ===")
		fmt.Fprintln(tw, "ID\tNAME\tCOMPUTER\tCOUNT\tSPAN")
		for _, b := range r.Bursts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.EventID, b.EventName, b.Computer, b.Count, b.Span())
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
