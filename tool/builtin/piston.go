package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/astra/tool"
)

const pistonTimeout = 15 * time.Second

type pistonFile struct {
	Name     string `json:"name,omitempty"`
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty" jsonschema:"enum=utf8,enum=base64,enum=hex"`
}

type pistonArgs struct {
	Language       string       `json:"language" jsonschema:"description=Language such as python or js or cpp"`
	Code           string       `json:"code,omitempty" jsonschema:"description=Source of a single file program"`
	Version        string       `json:"version,omitempty" jsonschema:"description=SemVer range or *,default=*"`
	Files          []pistonFile `json:"files,omitempty" jsonschema:"description=Multi file program; overrides code"`
	Stdin          *string      `json:"stdin,omitempty"`
	Args           []string     `json:"args,omitempty"`
	RunTimeout     *int         `json:"run_timeout,omitempty" jsonschema:"description=Run timeout in milliseconds,default=3000"`
	CompileTimeout *int         `json:"compile_timeout,omitempty" jsonschema:"description=Compile timeout in milliseconds,default=10000"`
}

type pistonRequest struct {
	Language       string       `json:"language"`
	Version        string       `json:"version"`
	Files          []pistonFile `json:"files"`
	Stdin          *string      `json:"stdin,omitempty"`
	Args           []string     `json:"args,omitempty"`
	RunTimeout     int          `json:"run_timeout"`
	CompileTimeout int          `json:"compile_timeout"`
}

var pistonFileNames = map[string]string{
	"python":     "main.py",
	"py":         "main.py",
	"javascript": "main.js",
	"js":         "main.js",
	"ts":         "main.ts",
	"c":          "main.c",
	"cpp":        "main.cpp",
	"c++":        "main.cpp",
	"java":       "Main.java",
	"go":         "main.go",
	"rust":       "main.rs",
	"rb":         "main.rb",
	"ruby":       "main.rb",
	"php":        "main.php",
}

// pistonFileName picks the file name Piston expects for a single file program.
func pistonFileName(language string) string {
	if name, ok := pistonFileNames[strings.ToLower(language)]; ok {
		return name
	}
	return "main.txt"
}

// PistonExecute runs code on a Piston code execution service at baseURL. A
// nil client uses http.DefaultClient with a 15 second timeout per request.
func PistonExecute(baseURL string, client *http.Client) tool.Tool {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")

	description := "Run code using the public Piston API (no Docker required). " +
		"Provide language (e.g. 'python', 'js', 'c', 'cpp', 'java'), optional version '*' and either 'code' for a single file or 'files' for multi-file. " +
		"Optional: stdin (string), args (list of strings). Returns combined stdout/stderr and exit info."

	return tool.NewTyped(PistonExecuteName, description, func(ctx context.Context, in pistonArgs) (any, error) {
		req, refusal := buildPistonRequest(in)
		if refusal != "" {
			return refusal, nil
		}
		data, err := postPiston(ctx, client, baseURL+"/execute", req)
		if err != nil {
			return err.Error(), nil
		}
		return formatPistonResult(data), nil
	})
}

func buildPistonRequest(in pistonArgs) (pistonRequest, string) {
	req := pistonRequest{
		Language:       in.Language,
		Version:        in.Version,
		Stdin:          in.Stdin,
		Args:           in.Args,
		RunTimeout:     3000,
		CompileTimeout: 10000,
	}
	if req.Version == "" {
		req.Version = "*"
	}
	if in.RunTimeout != nil {
		req.RunTimeout = *in.RunTimeout
	}
	if in.CompileTimeout != nil {
		req.CompileTimeout = *in.CompileTimeout
	}

	switch {
	case len(in.Files) > 0:
		for _, f := range in.Files {
			if f.Name == "" {
				f.Name = "main"
			}
			req.Files = append(req.Files, f)
		}
	case in.Code != "":
		req.Files = []pistonFile{{Name: pistonFileName(in.Language), Content: in.Code}}
	default:
		return req, "PistonExecuteTool: Provide either 'code' or 'files'."
	}
	return req, ""
}

func postPiston(ctx context.Context, client *http.Client, url string, payload pistonRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("Piston error: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pistonTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Piston error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Piston HTTP error: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Piston HTTP error: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Piston HTTP error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("Piston error: invalid JSON response")
	}
	return data, nil
}

// formatPistonResult renders compile and run output sections followed by a
// [meta] line carrying exit information.
func formatPistonResult(data []byte) string {
	res := gjson.ParseBytes(data)
	run := res.Get("run")
	compile := res.Get("compile")

	var parts []string
	if compile.IsObject() {
		if out := compile.Get("stdout").String(); out != "" {
			parts = append(parts, "[compile stdout]\n"+out)
		}
		if errOut := compile.Get("stderr").String(); errOut != "" {
			parts = append(parts, "[compile stderr]\n"+errOut)
		}
		status := compile.Get("status").String()
		if status == "" {
			status = compile.Get("message").String()
		}
		if status != "" {
			parts = append(parts, "[compile status] "+status)
		}
	}

	if out := run.Get("stdout").String(); out != "" {
		parts = append(parts, "[stdout]\n"+out)
	}
	if errOut := run.Get("stderr").String(); errOut != "" {
		parts = append(parts, "[stderr]\n"+errOut)
	}

	raw := func(r gjson.Result) json.RawMessage {
		if !r.Exists() {
			return json.RawMessage("null")
		}
		return json.RawMessage(r.Raw)
	}
	meta := struct {
		Code     json.RawMessage `json:"code"`
		Status   json.RawMessage `json:"status"`
		CPUTime  json.RawMessage `json:"cpu_time"`
		WallTime json.RawMessage `json:"wall_time"`
		Memory   json.RawMessage `json:"memory"`
		Language json.RawMessage `json:"language"`
		Version  json.RawMessage `json:"version"`
	}{
		Code:     raw(run.Get("code")),
		Status:   raw(run.Get("status")),
		CPUTime:  raw(run.Get("cpu_time")),
		WallTime: raw(run.Get("wall_time")),
		Memory:   raw(run.Get("memory")),
		Language: raw(res.Get("language")),
		Version:  raw(res.Get("version")),
	}
	metaJSON, _ := json.Marshal(meta)
	parts = append(parts, "[meta] "+string(metaJSON))

	return strings.TrimSpace(strings.Join(parts, "\n"))
}
