package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func runDee(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runDee(t, args...)
	if err != nil {
		t.Fatalf("dee %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func write(t *testing.T, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "version")
	if out != "dee "+version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestLocalWorkflow(t *testing.T) {
	t.Chdir(t.TempDir())

	out := mustRun(t, "init")
	if !strings.Contains(out, "initialized empty dee repository") {
		t.Errorf("init output = %q", out)
	}
	token := mustRun(t, "token")
	out = mustRun(t, "init")
	if !strings.Contains(out, "repository already initialized in") || !strings.Contains(out, ".dee") {
		t.Errorf("second init output = %q", out)
	}
	if again := mustRun(t, "token"); again != token {
		t.Errorf("second init changed the token: %q -> %q", token, again)
	}

	write(t, "a.txt", "one")
	out = mustRun(t, "add")
	if !strings.Contains(out, "staged a.txt") {
		t.Errorf("add output = %q", out)
	}
	if _, err := runDee(t, "commit"); err == nil {
		t.Error("commit without message succeeded")
	}
	out = mustRun(t, "commit", "-m", "first")
	if !strings.HasPrefix(out, "[main ") {
		t.Errorf("commit output = %q", out)
	}

	mustRun(t, "branch", "feature")
	mustRun(t, "checkout", "feature")
	write(t, "b.txt", "two")
	mustRun(t, "add", "b.txt")
	mustRun(t, "commit", "second")

	out = mustRun(t, "branches")
	if out != "* feature\n  main\n" {
		t.Errorf("branches output = %q", out)
	}

	mustRun(t, "checkout", "main")
	if _, err := os.Stat("b.txt"); !os.IsNotExist(err) {
		t.Errorf("b.txt present on main (stat err=%v)", err)
	}
	out = mustRun(t, "merge", "feature")
	if !strings.Contains(out, "fast-forward main") {
		t.Errorf("merge output = %q", out)
	}
	if data, err := os.ReadFile("b.txt"); err != nil || string(data) != "two" {
		t.Errorf("b.txt after merge = %q, %v", data, err)
	}

	write(t, "a.txt", "one\nmore")
	mustRun(t, "add", "a.txt")
	out = mustRun(t, "diff", "--name-status")
	if out != "M a.txt\n" {
		t.Errorf("diff --name-status = %q", out)
	}
	out = mustRun(t, "diff")
	if !strings.Contains(out, "--- a/a.txt") || !strings.Contains(out, "+more") {
		t.Errorf("diff output = %q", out)
	}
	mustRun(t, "commit", "third")

	out = mustRun(t, "log", "-n", "2")
	if strings.Count(out, "commit ") != 2 || !strings.Contains(out, "    third") {
		t.Errorf("log output = %q", out)
	}

	out = mustRun(t, "token")
	if !regexp.MustCompile(`^[0-9a-f]{64}\n$`).MatchString(out) {
		t.Errorf("token output = %q", out)
	}

	mustRun(t, "branch", "-d", "feature")
	if _, err := runDee(t, "checkout", "feature"); err == nil {
		t.Error("checkout of deleted branch succeeded")
	}
}

func TestRebaseCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	mustRun(t, "init")
	write(t, "base.txt", "base")
	mustRun(t, "add")
	mustRun(t, "commit", "base")

	mustRun(t, "branch", "topic")
	write(t, "main.txt", "main")
	mustRun(t, "add", "main.txt")
	mustRun(t, "commit", "main work")

	mustRun(t, "checkout", "topic")
	write(t, "topic.txt", "topic")
	mustRun(t, "add", "topic.txt")
	mustRun(t, "commit", "topic work")

	out := mustRun(t, "rebase", "topic", "main")
	if !strings.Contains(out, "replayed 1 commit(s) of topic onto main") {
		t.Errorf("rebase output = %q", out)
	}
	for _, name := range []string{"base.txt", "main.txt", "topic.txt"} {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("%s missing after rebase: %v", name, err)
		}
	}
}

func TestRemoteWorkflow(t *testing.T) {
	shared := t.TempDir()
	t.Setenv("DEE_REGISTRY", filepath.Join(shared, "registry.db"))
	t.Setenv("DEE_TRANSFER", filepath.Join(shared, "bundles"))
	t.Setenv("DEE_RETRIES", "0")
	if err := os.MkdirAll(filepath.Join(shared, "bundles"), 0o755); err != nil {
		t.Fatal(err)
	}

	work := t.TempDir()
	t.Chdir(work)
	mustRun(t, "init")
	write(t, "docs/readme.md", "# hello")
	mustRun(t, "add")
	mustRun(t, "commit", "first")

	remoteID := strings.TrimSpace(mustRun(t, "remote", "create", "project"))
	if out := mustRun(t, "remote", "list"); !strings.Contains(out, remoteID+"\tproject") {
		t.Errorf("remote list = %q", out)
	}

	if _, err := runDee(t, "push"); err == nil {
		t.Error("push without remote id or link succeeded")
	}
	out := mustRun(t, "push", remoteID)
	m := regexp.MustCompile(`bundle ([0-9a-f]{64})`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("push output has no bundle hash: %q", out)
	}

	cloneRoot := t.TempDir()
	t.Chdir(cloneRoot)
	mustRun(t, "clone", m[1]+".bundle")
	clone := filepath.Join(cloneRoot, "project")
	if data, err := os.ReadFile(filepath.Join(clone, "docs", "readme.md")); err != nil || string(data) != "# hello" {
		t.Fatalf("cloned readme = %q, %v", data, err)
	}

	t.Chdir(work)
	write(t, "docs/readme.md", "# hello again")
	mustRun(t, "add")
	mustRun(t, "commit", "second")
	mustRun(t, "push")

	t.Chdir(clone)
	out = mustRun(t, "pull")
	if !strings.Contains(out, "updated main") {
		t.Errorf("pull output = %q", out)
	}
	if data, err := os.ReadFile(filepath.Join("docs", "readme.md")); err != nil || string(data) != "# hello again" {
		t.Errorf("pulled readme = %q, %v", data, err)
	}
	out = mustRun(t, "pull")
	if !strings.Contains(out, "already up to date") {
		t.Errorf("second pull output = %q", out)
	}
}

func TestRemoteCommandsNeedSettings(t *testing.T) {
	t.Setenv("DEE_REGISTRY", "")
	t.Setenv("DEE_TRANSFER", "")
	t.Chdir(t.TempDir())
	mustRun(t, "init")
	if _, err := runDee(t, "push"); err == nil || !strings.Contains(err.Error(), "registry not configured") {
		t.Errorf("push error = %v", err)
	}
	if _, err := runDee(t, "--registry", filepath.Join(t.TempDir(), "r.db"), "pull"); err == nil || !strings.Contains(err.Error(), "transfer location not configured") {
		t.Errorf("pull error = %v", err)
	}
}
