// Package device describes the compute device training and analysis run on
package device

import "runtime"
import "strings"

import "github.com/klauspost/cpuid/v2"
import "github.com/pkg/errors"

// ErrUnknownDevice is returned for a device selector other than "cpu"
var ErrUnknownDevice = errors.New("unknown device")

// Device is an explicit handle passed to the components that size their work by it
type Device struct {
	Name    string
	Brand   string
	Threads int
	AVX2    bool
	AVX512  bool
}

// Detect describes the host CPU
func Detect() Device {
	threads := cpuid.CPU.LogicalCores
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return Device{
		Name:    "cpu",
		Brand:   cpuid.CPU.BrandName,
		Threads: threads,
		AVX2:    cpuid.CPU.Supports(cpuid.AVX2),
		AVX512:  cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ),
	}
}

// Parse resolves a selector. Accelerators are not supported.
func Parse(selector string) (Device, error) {
	switch strings.ToLower(selector) {
	case "", "cpu":
		return Detect(), nil
	}
	return Device{}, errors.Wrapf(ErrUnknownDevice, "%q", selector)
}

// Workers is the goroutine budget for parallel analyses, at least 1
func (d Device) Workers() int {
	if d.Threads < 1 {
		return 1
	}
	return d.Threads
}
