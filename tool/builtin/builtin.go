// Package builtin provides the tools shipped with Astra: shell access, file
// writes, a Python interpreter, remote code execution through Piston and
// helpers that pull code blocks and test cases out of model replies.
//
// Execution failures are reported as result strings rather than errors so a
// model reading the tool output can react to them.
package builtin

import (
	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/tool"
)

// Tool names.
const (
	ShellName            = "shell"
	WriteFileName        = "write_file"
	PythonREPLName       = "python_repl"
	PistonExecuteName    = "piston_execute"
	ExtractCodeBlockName = "extract_code_block"
	ExtractTestCasesName = "extract_test_cases"
)

// Defaults returns every builtin tool configured from settings.
func Defaults(settings config.Settings) []tool.Tool {
	return []tool.Tool{
		PythonREPL(settings.Python),
		Shell(),
		WriteFile(),
		PistonExecute(settings.PistonBaseURL, nil),
		ExtractCodeBlock(),
		ExtractTestCases(),
	}
}

// Registry returns a registry holding Defaults(settings).
func Registry(settings config.Settings) *tool.Registry {
	return tool.NewRegistry(Defaults(settings)...)
}
