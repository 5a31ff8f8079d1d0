package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/tool"
)

func call(t *testing.T, tl tool.Tool, args map[string]any) string {
	t.Helper()
	res, err := tl.Call(context.Background(), args)
	require.NoError(t, err)
	s, ok := res.(string)
	require.True(t, ok, "expected string result, got %T", res)
	return s
}

func TestDefaults(t *testing.T) {
	r := Registry(config.DefaultSettings())
	assert.Equal(t, []string{
		PythonREPLName, ShellName, WriteFileName, PistonExecuteName, ExtractCodeBlockName, ExtractTestCasesName,
	}, r.Names())

	for _, s := range r.Schemas() {
		params := s["parameters"].(map[string]any)
		assert.Equal(t, "object", params["type"], s["name"])
	}
}

// -------------------- shell --------------------

func TestShellCommand(t *testing.T) {
	argv, refusal := shellCommand("linux", "  ls -la ")
	assert.Empty(t, refusal)
	assert.Equal(t, []string{"bash", "-lc", "ls -la"}, argv)

	argv, refusal = shellCommand("windows", "./run.ps1")
	assert.Empty(t, refusal)
	assert.Equal(t, []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-Command", `.\run.ps1`}, argv)

	_, refusal = shellCommand("windows", ". ./env.sh")
	assert.Contains(t, refusal, "not supported on Windows PowerShell")
}

func requireBash(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("bash tests run on POSIX only")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func TestShell(t *testing.T) {
	requireBash(t)
	sh := Shell()

	assert.Equal(t, "hello", call(t, sh, map[string]any{"command": "echo hello"}))
	assert.Equal(t, "warn", call(t, sh, map[string]any{"command": "echo warn 1>&2"}))
	assert.Equal(t, "Shell error (3): bad", call(t, sh, map[string]any{"command": "echo bad 1>&2; exit 3"}))
	assert.Equal(t, "Shell error (2): out", call(t, sh, map[string]any{"command": "echo out; exit 2"}))

	_, err := sh.Call(context.Background(), map[string]any{})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)
}

// -------------------- write_file --------------------

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	wf := WriteFile()

	assert.Equal(t, "File written: "+path, call(t, wf, map[string]any{"path": path, "content": "abc"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "f.txt")
	assert.Contains(t, call(t, wf, map[string]any{"path": missing, "content": "x"}), "Error writing file:")
}

// -------------------- python_repl --------------------

func TestPythonCommand(t *testing.T) {
	argv, err := pythonCommand("uv run 'python 3'", "print(1)")
	require.NoError(t, err)
	assert.Equal(t, []string{"uv", "run", "python 3", "-c", "print(1)"}, argv)

	argv, err = pythonCommand("", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "-c", "x"}, argv)

	_, err = pythonCommand("   ", "x")
	assert.Error(t, err)
}

func TestPythonREPL(t *testing.T) {
	requireBash(t)
	// bash -c accepts the same "-c <code>" contract as python.
	repl := PythonREPL("bash")

	assert.Equal(t, "hi\n", call(t, repl, map[string]any{"code": "echo hi"}))
	assert.Equal(t, "Error: oops\n\npartial\n", call(t, repl, map[string]any{"code": "echo partial; echo oops 1>&2; exit 1"}))
}

// -------------------- piston_execute --------------------

func TestPistonFileName(t *testing.T) {
	assert.Equal(t, "main.py", pistonFileName("Python"))
	assert.Equal(t, "Main.java", pistonFileName("java"))
	assert.Equal(t, "main.cpp", pistonFileName("c++"))
	assert.Equal(t, "main.txt", pistonFileName("cobol"))
}

func TestPistonExecute(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"language":"c","version":"10.2.0",
			"compile":{"stdout":"","stderr":"warning: x","code":0,"status":null,"message":"ok"},
			"run":{"stdout":"42\n","stderr":"","code":0,"status":null,"cpu_time":5,"wall_time":10,"memory":1024}}`)
	}))
	defer srv.Close()

	piston := PistonExecute(srv.URL+"/", nil)
	out := call(t, piston, map[string]any{"language": "c", "code": "int main(){}", "stdin": "in"})

	assert.Equal(t, "[compile stderr]\nwarning: x\n[compile status] ok\n[stdout]\n42\n\n"+
		`[meta] {"code":0,"status":null,"cpu_time":5,"wall_time":10,"memory":1024,"language":"c","version":"10.2.0"}`, out)

	assert.Equal(t, "c", got["language"])
	assert.Equal(t, "*", got["version"])
	assert.Equal(t, "in", got["stdin"])
	assert.EqualValues(t, 3000, got["run_timeout"])
	assert.EqualValues(t, 10000, got["compile_timeout"])
	files := got["files"].([]any)
	require.Len(t, files, 1)
	assert.Equal(t, "main.c", files[0].(map[string]any)["name"])
}

func TestPistonExecute_Files(t *testing.T) {
	req, refusal := buildPistonRequest(pistonArgs{
		Language: "python",
		Code:     "ignored",
		Files:    []pistonFile{{Content: "print(1)"}, {Name: "util.py", Content: "x=1", Encoding: "utf8"}},
	})
	assert.Empty(t, refusal)
	require.Len(t, req.Files, 2)
	assert.Equal(t, "main", req.Files[0].Name)
	assert.Equal(t, "util.py", req.Files[1].Name)

	_, refusal = buildPistonRequest(pistonArgs{Language: "python"})
	assert.Equal(t, "PistonExecuteTool: Provide either 'code' or 'files'.", refusal)
}

func TestPistonExecute_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	out := call(t, PistonExecute(srv.URL, nil), map[string]any{"language": "py", "code": "print(1)"})
	assert.Contains(t, out, "Piston HTTP error: status 429")
}

func TestFormatPistonResult_Minimal(t *testing.T) {
	out := formatPistonResult([]byte(`{"run":{"stdout":"","stderr":"boom","code":1}}`))
	assert.Equal(t, "[stderr]\nboom\n"+
		`[meta] {"code":1,"status":null,"cpu_time":null,"wall_time":null,"memory":null,"language":null,"version":null}`, out)
}

// -------------------- extract_code_block --------------------

func TestFindCodeBlock(t *testing.T) {
	text := "intro\n```python\nprint('a')\n```\nmid\n```js\nconsole.log(1)\n```\n"

	res, ok := FindCodeBlock(text, "")
	require.True(t, ok)
	assert.Equal(t, "js", *res.Language)
	assert.Equal(t, "javascript", *res.NormalizedLanguage)
	assert.Equal(t, "console.log(1)", res.Code)

	res, ok = FindCodeBlock(text, "py")
	require.True(t, ok)
	assert.Equal(t, "python", *res.Language)
	assert.Equal(t, "print('a')", res.Code)

	res, ok = FindCodeBlock("```\n#include <iostream>\nint main(){}\n```", "")
	require.True(t, ok)
	assert.Nil(t, res.Language)
	assert.Equal(t, "cpp", *res.NormalizedLanguage)

	_, ok = FindCodeBlock("no code here", "")
	assert.False(t, ok)
}

func TestExtractCodeBlockTool(t *testing.T) {
	out := call(t, ExtractCodeBlock(), map[string]any{"text": "plain"})
	assert.JSONEq(t, `{"language":null,"normalized_language":null,"code":"","note":"no fenced code block found"}`, out)

	out = call(t, ExtractCodeBlock(), map[string]any{"text": "```go\npackage main\nfunc main() {}\n```", "prefer_language": "rust"})
	assert.JSONEq(t, `{"language":"go","normalized_language":"go","code":"package main\nfunc main() {}"}`, out)
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		label, code, want string
	}{
		{"C#", "", "csharp"},
		{"golang", "", "go"},
		{"", "#include <stdio.h>\nint main(){printf(\"x\");}", "c"},
		{"", "def main():\n  pass", "python"},
		{"", "package main\nfunc main() {}", "go"},
		{"", "fn main() { println!(\"x\"); }", "rust"},
		{"", "class A { public static void main(String[] args) {} }", "java"},
		{"unknown", "nothing recognizable", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLanguage(tt.label, tt.code), "%q/%q", tt.label, tt.code)
	}
}

// -------------------- extract_test_cases --------------------

func TestFindTestCases(t *testing.T) {
	t.Run("json fence latest first", func(t *testing.T) {
		text := "```json\n[{\"stdin\":\"1\",\"expected\":\"1\"}]\n```\n```json\n[{\"name\":\"sum\",\"stdin\":\"1 2\",\"expected\":3}]\n```"
		res := FindTestCases(text)
		require.Equal(t, 1, res.Count)
		assert.Equal(t, TestCase{Name: "sum", Stdin: "1 2", Expected: "3"}, res.Cases[0])
	})

	t.Run("bare array", func(t *testing.T) {
		res := FindTestCases(`Cases: [{"stdin": "a", "expected": "b"}, {"stdin": "c", "expected": "d"}] done`)
		require.Equal(t, 2, res.Count)
		assert.Equal(t, "Case 1", res.Cases[0].Name)
		assert.Equal(t, "Case 2", res.Cases[1].Name)
	})

	t.Run("invalid candidates skipped", func(t *testing.T) {
		res := FindTestCases(`[{"stdin": "a"}] and [{"foo": 1}]`)
		assert.Equal(t, 0, res.Count)
		assert.Equal(t, "no test cases array found", res.Note)
		assert.NotNil(t, res.Cases)
	})
}

func TestExtractTestCasesTool(t *testing.T) {
	out := call(t, ExtractTestCases(), map[string]any{"text": "nothing"})
	assert.JSONEq(t, `{"cases":[],"count":0,"note":"no test cases array found"}`, out)

	out = call(t, ExtractTestCases(), map[string]any{"text": "```JSON\n[{\"stdin\":\"x\",\"expected\":\"y\",\"name\":\"n\"}]\n```"})
	assert.JSONEq(t, `{"cases":[{"name":"n","stdin":"x","expected":"y"}],"count":1}`, out)
}
