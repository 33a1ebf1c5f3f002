package adb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/droidbridge/droidbridge/internal/util/sanitize"
)

// EntryType distinguishes files from folders in device listings.
type EntryType string

const (
	EntryFile   EntryType = "file"
	EntryFolder EntryType = "folder"
)

// DeviceFile is one entry from a device-side directory listing.
type DeviceFile struct {
	Name        string
	Type        EntryType
	Size        int64
	Permissions string
	Modified    string
}

// RemoteList lists a device-side directory via `shell ls -la` and parses
// the entries. Used by the planner to enumerate a remote folder.
func (r *ExecRunner) RemoteList(ctx context.Context, path string) ([]DeviceFile, error) {
	clean, err := sanitize.DevicePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid device path: %w", err)
	}

	stdout, stderr, code, err := r.Run(ctx, "shell", "ls", "-la", clean)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", clean, err)
	}
	if code != 0 {
		return nil, fmt.Errorf("listing %s: exit %d: %s", clean, code, stderr)
	}

	return parseListing(stdout), nil
}

// RemoteSize returns the size of a device-side file via `shell stat -c %s`.
func (r *ExecRunner) RemoteSize(ctx context.Context, path string) (int64, error) {
	clean, err := sanitize.DevicePath(path)
	if err != nil {
		return 0, fmt.Errorf("invalid device path: %w", err)
	}

	stdout, stderr, code, err := r.Run(ctx, "shell", "stat", "-c", "%s", clean)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", clean, err)
	}
	if code != 0 {
		return 0, fmt.Errorf("stat %s: exit %d: %s", clean, code, stderr)
	}

	size, err := strconv.ParseInt(strings.TrimSpace(stdout), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stat %s: unparsable size %q", clean, stdout)
	}
	return size, nil
}

// parseListing parses `ls -la` output. Lines with fewer than 9 fields
// and the "total N" header are skipped; names with spaces are rejoined.
func parseListing(out string) []DeviceFile {
	var files []DeviceFile
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "total ") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 9 {
			continue
		}

		permissions := parts[0]
		name := strings.Join(parts[8:], " ")
		if name == "." || name == ".." {
			continue
		}

		entryType := EntryFile
		if strings.HasPrefix(permissions, "d") {
			entryType = EntryFolder
		}

		var size int64
		if entryType == EntryFile {
			if n, err := strconv.ParseInt(parts[4], 10, 64); err == nil {
				size = n
			}
		}

		files = append(files, DeviceFile{
			Name:        name,
			Type:        entryType,
			Size:        size,
			Permissions: permissions,
			Modified:    strings.Join(parts[5:8], " "),
		})
	}
	return files
}
