// Package manifest defines the archiving manifest: the declarative
// description of a farm's layout and its archive target, consumed by
// the monitor and by the (external) scheduling and spawning
// collaborators.
package manifest

import (
	"fmt"
	"strings"

	"github.com/lopesmcc/plotman/pkg/probe"
)

// Manifest is the top-level archiving manifest document.
type Manifest struct {
	// Farm describes the destination side being monitored.
	Farm FarmConfig `yaml:"farm" json:"farm"`

	// Archiving describes the outbound transfer target.
	Archiving ArchivingConfig `yaml:"archiving" json:"archiving"`

	// Scratch lists local directories plots are generated into and
	// pushed out from.
	Scratch ScratchConfig `yaml:"scratch" json:"scratch"`
}

// FarmConfig locates the archival destination tree.
type FarmConfig struct {
	// Root is the common path all numbered disk directories live
	// under. Treated as a literal path, never a pattern.
	Root string `yaml:"root" json:"root"`

	// MarkerGlob overrides the marker-file pattern. Defaults to the
	// dot-prefixed convention used by the transfer tool.
	MarkerGlob string `yaml:"marker_glob,omitempty" json:"marker_glob,omitempty"`
}

// ArchivingConfig describes where completed plots are pushed.
type ArchivingConfig struct {
	// Target is either a local directory or a transfer URL of the form
	// rsync://user@host:port/module/.
	Target string `yaml:"target" json:"target"`

	// Bwlimit is the per-transfer bandwidth cap in bytes/sec.
	Bwlimit int64 `yaml:"bwlimit,omitempty" json:"bwlimit,omitempty"`

	// EgressCorrection adjusts rate-based egress progress projections
	// for protocol overhead. Default 0.8.
	EgressCorrection float64 `yaml:"egress_correction,omitempty" json:"egress_correction,omitempty"`
}

// ScratchConfig lists plot generation directories.
type ScratchConfig struct {
	Dirs []string `yaml:"dirs,omitempty" json:"dirs,omitempty"`
}

// ApplyDefaults fills optional fields with their documented defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Farm.MarkerGlob == "" {
		m.Farm.MarkerGlob = probe.DefaultMarkerGlob
	}
	if m.Archiving.EgressCorrection == 0 {
		m.Archiving.EgressCorrection = 0.8
	}
}

// Validate checks required fields and value ranges.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Farm.Root) == "" {
		return fmt.Errorf("farm.root is required")
	}
	if strings.TrimSpace(m.Archiving.Target) == "" {
		return fmt.Errorf("archiving.target is required")
	}
	if m.Archiving.Bwlimit < 0 {
		return fmt.Errorf("archiving.bwlimit must not be negative")
	}
	if m.Archiving.EgressCorrection < 0 || m.Archiving.EgressCorrection > 1 {
		return fmt.Errorf("archiving.egress_correction must be in (0, 1]")
	}
	for _, d := range m.Scratch.Dirs {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("scratch.dirs entries must not be empty")
		}
	}
	return nil
}
