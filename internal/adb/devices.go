package adb

import (
	"context"
	"fmt"
	"strings"
)

// DeviceState is the state column from `adb devices` output.
type DeviceState string

const (
	StateDevice       DeviceState = "device"
	StateUnauthorized DeviceState = "unauthorized"
	StateOffline      DeviceState = "offline"
)

// Device is one attached device.
type Device struct {
	Serial string
	State  DeviceState
}

// Devices lists attached devices.
func (r *ExecRunner) Devices(ctx context.Context) ([]Device, error) {
	stdout, stderr, code, err := r.Run(ctx, "devices")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("listing devices: exit %d: %s", code, stderr)
	}

	return parseDeviceList(stdout), nil
}

// CheckDevice returns the serial of the first ready device, or an error
// when none is attached and authorized.
func (r *ExecRunner) CheckDevice(ctx context.Context) (string, error) {
	devices, err := r.Devices(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.State == StateDevice {
			return d.Serial, nil
		}
	}
	return "", fmt.Errorf("no ready device attached")
}

// parseDeviceList parses `adb devices` output. The first line is the
// "List of devices attached" header; each following line is
// "<serial>\t<state>".
func parseDeviceList(out string) []Device {
	var devices []Device
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 && strings.HasPrefix(line, "List of devices") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{
			Serial: fields[0],
			State:  DeviceState(fields[1]),
		})
	}
	return devices
}
