package serial

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// AutoPorts is the config value that asks for port enumeration.
const AutoPorts = "auto"

// ResolveMotes turns the configured mote list into port names. An empty list
// or a list containing "auto" is replaced by every port ListPorts finds;
// explicit names are kept in the configured order, de-duplicated.
func ResolveMotes(configured []string) []string {
	out := make([]string, 0, len(configured))
	seen := make(map[string]struct{}, len(configured))
	auto := len(configured) == 0
	for _, name := range configured {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, AutoPorts) {
			auto = true
			continue
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if auto {
		for _, name := range ListPorts() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// ListPorts returns a sorted, de-duplicated list of serial device names.
// USB attached ports are what motes show up as, so the enumerator result is
// preferred; globbing covers systems where it returns nothing.
func ListPorts() []string {
	if ports, err := enumerator.GetDetailedPortsList(); err == nil && len(ports) > 0 {
		out := make([]string, 0, len(ports))
		seen := make(map[string]struct{}, len(ports))
		for _, p := range ports {
			if p == nil || p.Name == "" || !p.IsUSB {
				continue
			}
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p.Name)
		}
		if len(out) > 0 {
			sort.Strings(out)
			return out
		}
	}

	switch runtime.GOOS {
	case "windows":
		return nil
	case "darwin":
		return listByGlob("/dev/cu.usbserial*", "/dev/cu.usbmodem*")
	default:
		return listByGlob("/dev/ttyUSB*", "/dev/ttyACM*")
	}
}

func listByGlob(patterns ...string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		for _, m := range matches {
			if _, err := os.Stat(m); err != nil {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}
