// Package dedup decides which files actually need transferring by
// comparing content digests on both sides of the bridge.
//
// The package is stateless and reentrant: digest maps are built fresh per
// planning call and nothing is cached across calls, so planning may run
// on any goroutine, including concurrently with an unrelated transfer.
package dedup

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/droidbridge/droidbridge/internal/constants"
	"github.com/droidbridge/droidbridge/internal/util/sanitize"
)

// Side identifies which end of the bridge a file set lives on.
type Side int

const (
	SideLocal Side = iota
	SideRemote
)

func (s Side) String() string {
	if s == SideRemote {
		return "device"
	}
	return "local"
}

// CommandRunner is the slice of the bridge runner the hash engine needs:
// captured command execution for remote digest and stat commands.
type CommandRunner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr string, exitCode int, err error)
}

// remoteDigestCommands maps an algorithm name to the digest program
// available in the device shell.
var remoteDigestCommands = map[string]string{
	"md5":    "md5sum",
	"sha1":   "sha1sum",
	"sha256": "sha256sum",
}

func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", algorithm)
	}
}

// LocalDigest computes the content digest of a local file with chunked
// reads. Returns an error when the path is not a regular file or cannot
// be read.
func LocalDigest(path, algorithm string) (string, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, constants.HashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// RemoteDigest computes the content digest of a device-side file by
// running the matching digest program through the bridge shell. The
// digest is the first whitespace-delimited token of the command output
// ("<hex> <filename>").
func RemoteDigest(ctx context.Context, runner CommandRunner, path, algorithm string) (string, error) {
	program, ok := remoteDigestCommands[algorithm]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm: %q", algorithm)
	}

	clean, err := sanitize.DevicePath(path)
	if err != nil {
		return "", fmt.Errorf("invalid device path: %w", err)
	}

	stdout, stderr, code, err := runner.Run(ctx, "shell", program, clean)
	if err != nil {
		return "", fmt.Errorf("remote digest of %s: %w", clean, err)
	}
	if code != 0 {
		return "", fmt.Errorf("remote digest of %s: exit %d: %s", clean, code, stderr)
	}

	fields := strings.Fields(stdout)
	if len(fields) == 0 {
		return "", fmt.Errorf("remote digest of %s: empty output", clean)
	}

	digest := strings.ToLower(fields[0])
	if !isHex(digest) {
		return "", fmt.Errorf("remote digest of %s: unparsable output %q", clean, stdout)
	}
	return digest, nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
