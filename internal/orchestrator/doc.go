// Package orchestrator turns a task description into a run.
//
// A run moves through four steps:
//   - Planning: the planner builds an ExecutionPlan of phases and roles
//   - Materialization: planned roles become persisted tasks with resolved dependency ids
//   - Execution: phases run in order, each one a barrier; parallel phases fan out
//   - Synthesis: completed and failed tasks are folded into a report
//
// Tasks share context only through the blackboard. A task receives the
// entries tagged with its context tags, and every entry it writes is keyed
// "role:key" and tagged with its role.
//
// Example usage:
//
//	orch := orchestrator.New(db, builder, agent.DryRunExecutor{},
//		orchestrator.WithTimeout(2*time.Minute))
//	defer orch.Close()
//	run, err := orch.Run(ctx, "Research the top Go web frameworks")
package orchestrator
