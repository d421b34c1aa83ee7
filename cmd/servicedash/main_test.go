package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// TestCLIServicesCatalogJSON lists services declared in the config file.
func TestCLIServicesCatalogJSON(t *testing.T) {
	cfgPath := writeTempConfig(t, "servicedash.yaml", `
analysis:
  provider: none
services:
  - name: Jellyfin
    url: http://nas.lan
    port: 8096
    status: running
    configs:
      - path: /srv/jellyfin/docker-compose.yml
  - name: Pi-hole
`)

	root := newRootCmd()
	root.SetArgs([]string{"services", "--config", cfgPath, "--source", "catalog", "--format", "json", "--json-indent"})
	output, err := executeCommand(root, "")
	if err != nil {
		t.Fatalf("command returned error: %v\nOutput: %s", err, output)
	}

	var parsed struct {
		Services []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Status  string `json:"status"`
			Configs []struct {
				Type string `json:"type"`
			} `json:"configs"`
		} `json:"services"`
		Total   int `json:"total"`
		Running int `json:"running"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		t.Fatalf("failed to parse JSON output: %v\nOutput: %s", err, output)
	}
	if parsed.Total != 2 || parsed.Running != 1 {
		t.Errorf("expected total=2 running=1, got total=%d running=%d", parsed.Total, parsed.Running)
	}
	if len(parsed.Services[0].ID) != 12 {
		t.Errorf("expected 12 character id, got %q", parsed.Services[0].ID)
	}
	if parsed.Services[1].Status != "STOPPED" {
		t.Errorf("expected default status STOPPED, got %q", parsed.Services[1].Status)
	}
	if parsed.Services[0].Configs[0].Type != "YAML" {
		t.Errorf("expected detected YAML type, got %q", parsed.Services[0].Configs[0].Type)
	}
	if !strings.Contains(output, "\n  \"services\"") {
		t.Errorf("expected indented JSON output (--json-indent), pattern not found")
	}
}

// TestCLIServicesAndHostFromAPI reads the dashboard API.
func TestCLIServicesAndHostFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/services":
			_, _ = w.Write([]byte(`{"services":[{"id":"abc","name":"Gitea","status":"RUNNING","url":"http://pi4","port":3000,"configs":[]}],"total":1,"running":1}`))
		case "/host/stats":
			_, _ = w.Write([]byte(`{"cpu":{"usage":12.5,"cores":4,"threads":8},"memory":{"usedGB":2,"totalGB":8},"storage":{"usedGB":100,"totalGB":400}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer srv.Close()

	cfgPath := writeTempConfig(t, "servicedash.yaml", "api:\n  base_url: "+srv.URL+"\n")

	root := newRootCmd()
	root.SetArgs([]string{"services", "--config", cfgPath, "--no-color"})
	output, err := executeCommand(root, "")
	if err != nil {
		t.Fatalf("services returned error: %v", err)
	}
	expectContains(t, output, "Gitea", "service name missing")
	expectContains(t, output, "http://pi4:3000", "endpoint missing")
	expectContains(t, output, "1 services, 1 running", "summary missing")

	root = newRootCmd()
	root.SetArgs([]string{"host", "--config", cfgPath, "--format", "json"})
	output, err = executeCommand(root, "")
	if err != nil {
		t.Fatalf("host returned error: %v", err)
	}
	expectContains(t, output, `"threads":8`, "host stats missing")
}

// TestCLIInspectCatalog drives the interactive inspector from stdin.
func TestCLIInspectCatalog(t *testing.T) {
	dir := t.TempDir()
	compose := filepath.Join(dir, "docker-compose.yml")
	if err := os.WriteFile(compose, []byte("services:\n  jellyfin:\n    image: jellyfin/jellyfin\n"), 0o600); err != nil {
		t.Fatalf("failed to write compose file: %v", err)
	}
	cfgPath := writeTempConfig(t, "servicedash.toml", `
[analysis]
provider = "none"

[[services]]
name = "Jellyfin"
status = "running"

[[services.configs]]
path = "`+compose+`"
`)

	root := newRootCmd()
	root.SetArgs([]string{"inspect", "--config", cfgPath, "--source", "catalog", "--no-color"})
	output, err := executeCommand(root, "open 1\nanalyze\nquit\n")
	if err != nil {
		t.Fatalf("inspect returned error: %v\nOutput: %s", err, output)
	}
	expectContains(t, output, "1 services, 1 running", "initial list missing")
	expectContains(t, output, "image: jellyfin/jellyfin", "config content missing")
	expectContains(t, output, "AI analysis is disabled", "analysis failure notice missing")
}

func TestCLIAnalyzeDisabled(t *testing.T) {
	file := writeTempConfig(t, "Dockerfile", "FROM alpine\n")
	cfgPath := writeTempConfig(t, "servicedash.yaml", "analysis:\n  provider: none\n")

	root := newRootCmd()
	root.SetArgs([]string{"analyze", file, "--config", cfgPath})
	_, err := executeCommand(root, "")
	if err == nil || !strings.Contains(err.Error(), "disabled") {
		t.Fatalf("expected disabled analysis error, got %v", err)
	}

	root = newRootCmd()
	root.SetArgs([]string{"analyze", file, "--config", cfgPath, "--type", "toml"})
	_, err = executeCommand(root, "")
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestCLIErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unsupported source", []string{"services", "--source", "docker"}, "unsupported source"},
		{"missing config", []string{"services", "--config", "/nonexistent/servicedash.yaml"}, "failed to load config"},
		{"unsupported format", []string{"services", "--source", "catalog", "--format", "xml"}, "unsupported format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tt.args)
			_, err := executeCommand(root, "")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCLIVersion(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"version"})
	output, err := executeCommand(root, "")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	expectContains(t, output, "servicedash version: dev", "version output missing")
}

// Helper: write temp config file
func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

// Helper: execute a Cobra command capturing its output
func executeCommand(root *cobra.Command, stdin string) (string, error) {
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return buf.String(), err
}

// Helper: minimal contains assertion
func expectContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("%s: expected %q to contain %q", msg, s, substr)
	}
}
