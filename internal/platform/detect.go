package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct {
	goos       string
	goarch     string
	kernelArch func(ctx context.Context) (string, error)
	distro     func(ctx context.Context) (string, string, string, error)
}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
		kernelArch: kernelArch,
		distro:     host.PlatformInformationWithContext,
	}
}

// kernelArch adapts host.KernelArch, which takes no context, to the
// detector's signature. A cancelled ctx is reported before the uname call.
func kernelArch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return host.KernelArch()
}

// Detect performs platform detection and returns platform information.
//
// Kernel and distribution details come from gopsutil and are left empty
// when they cannot be read; they never change the canonical identifier.
// Cancellation of ctx is a hard failure.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	arch, err := normalizeArch(d.goarch)
	if err != nil {
		return nil, fmt.Errorf("platform detection failed: %w", err)
	}
	info := &Info{
		OS:   d.goos,
		Arch: arch,
	}

	kernel, err := d.kernelArch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		kernel = ""
	}
	info.Kernel = normalizePlatform(kernel)

	if info.IsLinux() {
		platform, _, version, err := d.distro(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			// Graceful fallback for detection failures only
			return info, nil
		}
		info.Distro = normalizePlatform(platform)
		info.Version = normalizePlatform(version)
	}

	return info, nil
}
