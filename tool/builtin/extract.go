package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hupe1980/astra/tool"
)

var (
	fencedBlockRe = regexp.MustCompile("```([\\w#+-]*)\\s*\\n([\\s\\S]*?)```")
	jsonBlockRe   = regexp.MustCompile("(?i)```json\\s*\\n([\\s\\S]*?)```")
	objectArrayRe = regexp.MustCompile(`(\[\s*(?:\{[\s\S]*?\}\s*,?\s*)+\])`)
	testCasesRe   = regexp.MustCompile(`(?i)Test Cases\s*:?\s*`)
)

// languageAliases maps fence labels onto Piston language names.
var languageAliases = map[string]string{
	"py": "python", "python": "python",
	"js": "javascript", "javascript": "javascript", "node": "javascript", "nodejs": "javascript",
	"ts": "typescript", "typescript": "typescript",
	"c":   "c",
	"cpp": "cpp", "c++": "cpp", "cc": "cpp",
	"java": "java",
	"go":   "go", "golang": "go",
	"rs": "rust", "rust": "rust",
	"rb": "ruby", "ruby": "ruby",
	"php": "php",
	"cs":  "csharp", "c#": "csharp", "csharp": "csharp",
	"kt": "kotlin", "kotlin": "kotlin",
	"swift": "swift",
	"sh":    "bash", "bash": "bash", "shell": "bash",
	"r":       "r",
	"scala":   "scala",
	"dart":    "dart",
	"perl":    "perl",
	"haskell": "haskell", "hs": "haskell",
}

// NormalizeLanguage maps a fence label to a Piston language name, falling
// back to guessing from the code. It returns "" when nothing matches.
func NormalizeLanguage(label, code string) string {
	if label != "" {
		if norm, ok := languageAliases[strings.ToLower(label)]; ok {
			return norm
		}
	}

	has := func(s string) bool { return strings.Contains(code, s) }
	switch {
	case has("#include <iostream>") || has("using namespace std"):
		return "cpp"
	case has("#include <stdio.h>") && has("printf("):
		return "c"
	case strings.HasPrefix(code, "#!/usr/bin/env python") || has("def main(") || (has("print(") && !has("#include")):
		return "python"
	case has("console.log(") || (has("function(") && !has("#include")):
		return "javascript"
	case has("package main") && has("func main()"):
		return "go"
	case has("fn main()") && has("println!"):
		return "rust"
	case has("public static void main(String[] args)"):
		return "java"
	}
	return ""
}

type codeBlock struct {
	lang string
	code string
}

// CodeBlockResult is the JSON document returned by extract_code_block.
type CodeBlockResult struct {
	Language           *string `json:"language"`
	NormalizedLanguage *string `json:"normalized_language"`
	Code               string  `json:"code"`
	Note               string  `json:"note,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FindCodeBlock returns the latest fenced block whose label equals or starts
// with preferLanguage, or the latest block of any language. ok is false when
// the text holds no fenced block.
func FindCodeBlock(text, preferLanguage string) (CodeBlockResult, bool) {
	var blocks []codeBlock
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, codeBlock{lang: strings.ToLower(strings.TrimSpace(m[1])), code: m[2]})
	}
	if len(blocks) == 0 {
		return CodeBlockResult{Code: "", Note: "no fenced code block found"}, false
	}

	chosen := blocks[len(blocks)-1]
	if pref := strings.ToLower(strings.TrimSpace(preferLanguage)); pref != "" {
		for i := len(blocks) - 1; i >= 0; i-- {
			if b := blocks[i]; b.lang != "" && strings.HasPrefix(b.lang, pref) {
				chosen = b
				break
			}
		}
	}

	return CodeBlockResult{
		Language:           optional(chosen.lang),
		NormalizedLanguage: optional(NormalizeLanguage(chosen.lang, chosen.code)),
		Code:               strings.TrimSpace(chosen.code),
	}, true
}

type extractCodeArgs struct {
	Text           string `json:"text"`
	PreferLanguage string `json:"prefer_language,omitempty" jsonschema:"description=Preferred fence label such as python or js"`
}

// ExtractCodeBlock returns the most recent fenced code block of a text as JSON.
func ExtractCodeBlock() tool.Tool {
	description := "Extract the most recent fenced code block from given text. " +
		"Optionally prefer a language (e.g., 'python'). Returns a compact JSON string with fields: language, code."

	return tool.NewTyped(ExtractCodeBlockName, description, func(_ context.Context, in extractCodeArgs) (any, error) {
		res, _ := FindCodeBlock(in.Text, in.PreferLanguage)
		out, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		return string(out), nil
	})
}

// TestCase is one stdin/expected pair.
type TestCase struct {
	Name     string `json:"name"`
	Stdin    string `json:"stdin"`
	Expected string `json:"expected"`
}

// TestCasesResult is the JSON document returned by extract_test_cases.
type TestCasesResult struct {
	Cases []TestCase `json:"cases"`
	Count int        `json:"count"`
	Note  string     `json:"note,omitempty"`
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}

// parseCases accepts a JSON array whose every element is an object with
// stdin and expected keys.
func parseCases(candidate string) []TestCase {
	var items []any
	if err := json.Unmarshal([]byte(candidate), &items); err != nil {
		return nil
	}
	cases := make([]TestCase, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		stdin, hasStdin := obj["stdin"]
		expected, hasExpected := obj["expected"]
		if !hasStdin || !hasExpected {
			return nil
		}
		name := stringify(obj["name"])
		if name == "" {
			name = fmt.Sprintf("Case %d", i+1)
		}
		cases = append(cases, TestCase{Name: name, Stdin: stringify(stdin), Expected: stringify(expected)})
	}
	if len(cases) == 0 {
		return nil
	}
	return cases
}

func firstValid(candidates []string) []TestCase {
	for _, c := range candidates {
		if cases := parseCases(c); cases != nil {
			return cases
		}
	}
	return nil
}

func latestFirst(matches [][]string) []string {
	out := make([]string, 0, len(matches))
	for i := len(matches) - 1; i >= 0; i-- {
		out = append(out, matches[i][1])
	}
	return out
}

// FindTestCases looks for test cases in fenced json blocks, then in any
// array of objects, then in the first array following a "Test Cases" heading.
func FindTestCases(text string) TestCasesResult {
	if cases := firstValid(latestFirst(jsonBlockRe.FindAllStringSubmatch(text, -1))); cases != nil {
		return TestCasesResult{Cases: cases, Count: len(cases)}
	}
	if cases := firstValid(latestFirst(objectArrayRe.FindAllStringSubmatch(text, -1))); cases != nil {
		return TestCasesResult{Cases: cases, Count: len(cases)}
	}
	if loc := testCasesRe.FindStringIndex(text); loc != nil {
		snippet := []rune(text[loc[1]:])
		if len(snippet) > 2000 {
			snippet = snippet[:2000]
		}
		if m := objectArrayRe.FindStringSubmatch(string(snippet)); m != nil {
			if cases := parseCases(m[1]); cases != nil {
				return TestCasesResult{Cases: cases, Count: len(cases)}
			}
		}
	}
	return TestCasesResult{Cases: []TestCase{}, Count: 0, Note: "no test cases array found"}
}

type extractTestsArgs struct {
	Text string `json:"text"`
}

// ExtractTestCases returns stdin/expected test cases found in a text as JSON.
func ExtractTestCases() tool.Tool {
	description := "Extract Product Manager style test cases from text. " +
		"Looks for a JSON array of objects with fields at least 'stdin' and 'expected' (and optional 'name'). " +
		"Returns a compact JSON string: {cases: [{name, stdin, expected}], count}."

	return tool.NewTyped(ExtractTestCasesName, description, func(_ context.Context, in extractTestsArgs) (any, error) {
		out, err := json.Marshal(FindTestCases(in.Text))
		if err != nil {
			return nil, err
		}
		return string(out), nil
	})
}
