package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Browser  browserInfo `json:"browser"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// browserInfo holds Chrome/Chromium detection results. The browser is only
// needed for mermaid diagram rendering; conversion works without it.
type browserInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, deps *Dependencies) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	result := runDoctor()

	if jsonOutput {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(deps.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor() *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	checkBrowser(result)
	checkEnvironment(result)
	checkSystem(result)

	// Determine final status
	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkBrowser detects Chrome/Chromium installation. A missing browser is a
// warning, not an error: conversion still works, diagram blocks are skipped.
func checkBrowser(result *doctorResult) {
	browserPath := result.Env.BrowserBin

	if browserPath == "" {
		// Use rod's launcher to locate Chrome
		var found bool
		browserPath, found = launcher.LookPath()
		if !found {
			result.Warnings = append(result.Warnings,
				"Chrome/Chromium not found; mermaid diagrams will be skipped. Install Chrome or set ROD_BROWSER_BIN")
			return
		}
	}

	// Verify it exists
	if _, err := os.Stat(browserPath); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Browser not found at %s; mermaid diagrams will be skipped", browserPath))
		return
	}

	result.Browser.Found = true
	result.Browser.Path = browserPath

	// Get version by running the browser with --version
	cmd := exec.Command(browserPath, "--version")
	out, err := cmd.Output()
	if err == nil {
		result.Browser.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get browser version: %v", err))
	}

	// Sandbox status: disabled if ROD_NO_SANDBOX=1
	result.Browser.Sandbox = result.Env.NoSandbox != "1"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	// Detect container (multi-signal approach)
	result.Env.Container, result.Env.ContainerHint = isContainer()

	// Detect CI environments
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	// Warn if container/CI without sandbox disabled
	if (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1 for diagram rendering")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	// Explicit override (highest priority)
	if os.Getenv("MD2PPTX_CONTAINER") == "1" {
		return true, "MD2PPTX_CONTAINER=1"
	}
	// Docker
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	// Podman / systemd-nspawn / general container indicator
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	// Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies system requirements.
func checkSystem(result *doctorResult) {
	// Check temp directory is writable (atomic output writes stage there too)
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "md2pptx-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "md2pptx doctor")
	fmt.Fprintln(w)

	// Browser section
	fmt.Fprintln(w, "Browser (mermaid diagrams)")
	if r.Browser.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Browser.Path)
		if r.Browser.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Browser.Version)
		}
		if r.Browser.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled (ROD_NO_SANDBOX=1)")
		}
	} else {
		fmt.Fprintln(w, "  [WARN] Not found (diagram blocks will be skipped)")
	}
	fmt.Fprintln(w)

	// Environment section
	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	// System section
	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	// Warnings
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	// Errors
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	// Final status
	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to convert")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
