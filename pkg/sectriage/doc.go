// Package sectriage scores Windows Security event records and explains why
// each one is worth a look.
//
// Quick start:
//
//	t, err := sectriage.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, ok := t.Classify(map[string]any{"EventCode": "4625", "ComputerName": "WIN-DC01", "user": "admin"})
//	if ok {
//	    fmt.Println(f.Score, f.Reasons) // 3 [High-risk event: Failed Logon]
//	}
//
// Records are the bodies of a Splunk/WinEventLog JSON export, with or
// without the {"result": {...}} envelope. A Triage instance is safe for
// concurrent use; create once and reuse.
package sectriage
