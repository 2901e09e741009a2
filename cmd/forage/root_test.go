package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestPrintURL(t *testing.T) {
	out, _, err := execute(t, "-a", "print_url", "-e", "bing", "grilled cheese")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "https://www.bing.com/search?q=grilled+cheese\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestPrintOrgLinkWithDecoration(t *testing.T) {
	out, _, err := execute(t,
		"-a", "print_org_link",
		"-e", "google", "-n", "10",
		"--prepend", "best ",
		"cats")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "[[https://www.google.com/search?num=10&q=best+cats][best cats]]\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRejectsConflictingFlags(t *testing.T) {
	_, _, err := execute(t,
		"-a", "print_url",
		"--delay", "1s", "--min-delay", "1s", "--max-delay", "2s",
		"cats")
	if err == nil {
		t.Fatal("conflicting delay flags should fail")
	}
}

func TestRejectsUnknownEngine(t *testing.T) {
	_, _, err := execute(t, "-e", "askjeeves", "-a", "print_url", "cats")
	if err == nil || !strings.Contains(err.Error(), "unknown engine") {
		t.Fatalf("err = %v, want unknown engine", err)
	}
}

func TestEnvironmentBackfillsAnyFlag(t *testing.T) {
	t.Setenv("FORAGE_NUM", "25")
	t.Setenv("FORAGE_ENGINE", "google")

	out, _, err := execute(t, "-a", "print_url", "cats")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "https://www.google.com/search?num=25&q=cats\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("FORAGE_ENGINE", "bing")

	out, _, err := execute(t, "-a", "print_url", "-e", "duckduckgo", "cats")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out, "https://duckduckgo.com/?q=") {
		t.Errorf("output = %q, want duckduckgo URL", out)
	}
}

func TestReportGoesToStderr(t *testing.T) {
	out, errOut, err := execute(t,
		"-a", "print_url", "-e", "duckduckgo",
		"--report", "text",
		"cats", "dogs")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out, "succeeded") {
		t.Errorf("report leaked into stdout: %q", out)
	}
	if !strings.Contains(errOut, "2 total, 2 succeeded, 0 failed") {
		t.Errorf("stderr = %q, want run summary", errOut)
	}
}
