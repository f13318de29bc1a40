// Package tui provides the read-only terminal view used by the watch and
// run --watch commands.
//
// The view polls a store for the run and its tasks on every refresh tick and
// renders them grouped by phase. Orchestrator events can be pushed into the
// activity log as they happen:
//
//	program, app := tui.NewWatchProgram(store, runID, 500*time.Millisecond)
//	go func() {
//	    for ev := range orch.Events() {
//	        program.Send(tui.EventMsg{Event: ev})
//	    }
//	}()
//	if _, err := program.Run(); err != nil {
//	    return err
//	}
//
// Users can only scroll, collapse phases, and quit with 'q' or Ctrl+C.
package tui
