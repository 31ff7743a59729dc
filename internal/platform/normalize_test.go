package platform

import (
	"testing"
)

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"amd64", "amd64", "amd64", false},
		{"x86_64", "x86_64", "amd64", false},
		{"arm64", "arm64", "arm64", false},
		{"aarch64", "aarch64", "arm64", false},
		{"386", "386", "386", false},
		{"i686", "i686", "386", false},
		{"arm", "arm", "arm", false},
		{"armv7l", "armv7l", "arm", false},
		{"uppercase", "AARCH64", "arm64", false},
		{"unknown kept", "riscv64", "riscv64", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeArch(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("normalizeArch() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("normalizeArch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizePlatform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ubuntu", "ubuntu"},
		{"Ubuntu", "ubuntu"},
		{"  22.04  ", "22.04"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizePlatform(tt.input); got != tt.want {
			t.Errorf("normalizePlatform(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		os, arch string
		want     string
	}{
		{"windows", "amd64", "windows-x64"},
		{"windows", "386", "windows-x86"},
		{"windows", "arm64", "windows-arm64"},
		{"darwin", "arm64", "mac-os-arm64"},
		{"darwin", "amd64", "mac-os"},
		{"linux", "amd64", "linux"},
		{"linux", "arm64", "linux-arm64"},
		{"linux", "arm", "linux-arm"},
		{"linux", "386", "linux-i386"},
		{"linux", "riscv64", "linux-riscv64"},
		{"freebsd", "amd64", "freebsd-amd64"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			info := &Info{OS: tt.os, Arch: tt.arch}
			if got := info.CanonicalID(); got != tt.want {
				t.Errorf("CanonicalID() = %q, want %q", got, tt.want)
			}
		})
	}
}
