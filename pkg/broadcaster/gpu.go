package broadcaster

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AMDUnifiedMemoryReader reads per-GPU VRAM and GTT pool sizes from the
// amdgpu sysfs interface and reports their sum as usable memory, matching
// how unified-memory APUs actually share system RAM as graphics memory.
// No third-party GPU telemetry library in the pack's dependency surface
// covers AMD sysfs counters, so this reads /sys directly.
type AMDUnifiedMemoryReader struct {
	sysfsRoot string // normally /sys/class/drm
}

func NewAMDUnifiedMemoryReader() *AMDUnifiedMemoryReader {
	return &AMDUnifiedMemoryReader{sysfsRoot: "/sys/class/drm"}
}

// Read enumerates card* entries exposing amdgpu's mem_info attributes.
func (r *AMDUnifiedMemoryReader) Read() ([]GPUMemory, error) {
	entries, err := os.ReadDir(r.sysfsRoot)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.sysfsRoot, err)
	}

	var out []GPUMemory
	index := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "card") || strings.Contains(name, "-") {
			continue
		}
		base := filepath.Join(r.sysfsRoot, name, "device")

		vramTotal, vramUsed, err := readMemInfo(base, "mem_info_vram")
		if err != nil {
			continue // not an amdgpu card
		}
		gttTotal, gttUsed, _ := readMemInfo(base, "mem_info_gtt")

		busy, err := readSysfsInt(filepath.Join(base, "gpu_busy_percent"))
		if err != nil {
			busy = -1
		}

		out = append(out, GPUMemory{
			Index:              index,
			TotalBytes:         vramTotal + gttTotal,
			UsedBytes:          vramUsed + gttUsed,
			UtilizationPercent: int(busy),
		})
		index++
	}
	return out, nil
}

func readMemInfo(deviceDir, prefix string) (total, used int64, err error) {
	total, err = readSysfsInt(filepath.Join(deviceDir, prefix+"_total"))
	if err != nil {
		return 0, 0, err
	}
	used, err = readSysfsInt(filepath.Join(deviceDir, prefix+"_used"))
	return total, used, err
}

func readSysfsInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}
