// Package agent implements role-playing agents that complete tasks with a
// language model and, optionally, tools.
//
// An Agent frames every request with its role and goal:
//
//	Role: <role>
//	Goal: <goal>
//	Task: <task>          (Act)
//	Prompt: <prompt>      (Run, Execute)
//
// When tools are available the model may answer with fenced ```tool blocks
// holding {"name": ..., "arguments": {...}}. Each directive is executed, its
// result is fed back as a tool message and the model is asked again, for at
// most MaxToolRounds rounds. A reply without directives is final.
package agent
