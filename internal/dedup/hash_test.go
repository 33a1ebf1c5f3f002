package dedup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner replies to bridge shell commands from a canned table keyed
// by the joined argv.
type fakeRunner struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	stdout string
	stderr string
	code   int
	err    error
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, string, int, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	resp, ok := f.responses[key]
	if !ok {
		return "", "command not found", 127, nil
	}
	return resp.stdout, resp.stderr, resp.code, resp.err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalDigest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "hello world\n")

	got, err := LocalDigest(path, "sha256")
	if err != nil {
		t.Fatalf("LocalDigest: %v", err)
	}

	want := fmt.Sprintf("%x", sha256.Sum256([]byte("hello world\n")))
	if got != want {
		t.Errorf("LocalDigest = %s, want %s", got, want)
	}
}

func TestLocalDigestErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LocalDigest(filepath.Join(dir, "missing.txt"), "sha256"); err == nil {
		t.Error("expected error for missing file")
	}

	// Directories are not regular files.
	if _, err := LocalDigest(dir, "sha256"); err == nil {
		t.Error("expected error for directory")
	}

	path := writeFile(t, dir, "a.txt", "x")
	if _, err := LocalDigest(path, "crc32"); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestRemoteDigest(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"shell sha256sum /sdcard/a.jpg": {
			stdout: "DEADBEEF0123  /sdcard/a.jpg",
		},
	}}

	got, err := RemoteDigest(context.Background(), runner, "/sdcard/a.jpg", "sha256")
	if err != nil {
		t.Fatalf("RemoteDigest: %v", err)
	}
	if got != "deadbeef0123" {
		t.Errorf("RemoteDigest = %s, want lowercased digest", got)
	}
}

func TestRemoteDigestAlgorithmSelectsProgram(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"shell md5sum /sdcard/a.jpg": {stdout: "abc123 /sdcard/a.jpg"},
	}}

	if _, err := RemoteDigest(context.Background(), runner, "/sdcard/a.jpg", "md5"); err != nil {
		t.Fatalf("RemoteDigest md5: %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "shell md5sum /sdcard/a.jpg" {
		t.Errorf("unexpected calls: %v", runner.calls)
	}
}

func TestRemoteDigestFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		resp fakeResponse
	}{
		{"nonzero exit", fakeResponse{stderr: "No such file or directory", code: 1}},
		{"empty output", fakeResponse{stdout: ""}},
		{"garbage output", fakeResponse{stdout: "md5sum: permission denied"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{responses: map[string]fakeResponse{
				"shell sha256sum /sdcard/a.jpg": tt.resp,
			}}
			if _, err := RemoteDigest(ctx, runner, "/sdcard/a.jpg", "sha256"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRemoteDigestRejectsHostilePath(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{}}
	if _, err := RemoteDigest(context.Background(), runner, "/sdcard/x; reboot", "sha256"); err == nil {
		t.Error("expected error for hostile path")
	}
	if len(runner.calls) != 0 {
		t.Error("hostile path reached the runner")
	}
}
