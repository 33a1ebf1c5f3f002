// Package diskspace checks available disk space before large pulls so a
// transfer fails up front instead of half way through.
package diskspace

import (
	"fmt"

	strutil "github.com/droidbridge/droidbridge/internal/util/strings"
)

// InsufficientSpaceError indicates that there is not enough disk space
// available for a planned pull.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path,
		strutil.FormatBytes(uint64(e.RequiredBytes)),
		strutil.FormatBytes(uint64(e.AvailableBytes)))
}

// CheckAvailableSpace verifies the filesystem holding targetPath has room
// for requiredBytes times safetyMargin (for example 1.1 for a 10% buffer).
// Filesystems that cannot be queried pass the check; the transfer then
// fails naturally if space runs out.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	available, ok := availableBytes(targetPath)
	if !ok {
		return nil
	}
	needed := int64(float64(requiredBytes) * safetyMargin)
	if available < needed {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  needed,
			AvailableBytes: available,
		}
	}
	return nil
}
