// Package execguard decides whether an autonomous agent may run an
// operating-system command, and executes approved commands inside an
// OS-appropriate confinement layer.
//
// The policy engine turns a tabular threat database into an immutable,
// declarative RuleSet. A proposed argument vector is tokenized into a
// structured command and classified against the RuleSet, producing one of
// four verdicts: safe, match (caller judgement required), forbidden, or
// unverified. A Watcher holds the live database and RuleSet behind an
// atomically replaceable snapshot so classification and risk queries never
// block, even across reloads.
//
// Key features:
//   - CSV-backed threat database with five risk dimensions per record
//   - Deterministic policy compilation with hand-authored rule overrides
//   - Forbidden-first classification with per-argument file-access tags
//   - Lock-free concurrent classification with atomic hot reload
//   - Sandboxed execution via Seatbelt, Landlock, restricted Windows
//     shells, a remote execution API, or a deterministic dummy backend
//
// Basic usage:
//
//	w, err := execguard.NewWatcher(execguard.WatcherConfig{
//	    ThreatDBPath: "threats.csv",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	c, err := w.Classify([]string{"ls", "-l", "foo"}, "")
package execguard
