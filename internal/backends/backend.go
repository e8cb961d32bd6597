// Package backends implements the model backend clients that turn task
// manifest rows into generated videos. The backend set is closed: wan22 and
// wan21 run one subprocess per sample, lvp batches a whole slice into a
// single invocation driven by a CSV metadata table.
package backends

import (
	"context"
	"fmt"
	"strings"

	"vidsweep/internal/config"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

// Kind identifies a model backend.
type Kind string

const (
	KindWan22 Kind = "wan22"
	KindWan21 Kind = "wan21"
	KindLVP   Kind = "lvp"
)

// Kinds returns the supported backend kinds in canonical order.
func Kinds() []Kind {
	return []Kind{KindWan22, KindWan21, KindLVP}
}

// ParseKind validates a backend kind string.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindWan22:
		return KindWan22, nil
	case KindWan21:
		return KindWan21, nil
	case KindLVP:
		return KindLVP, nil
	default:
		return "", fmt.Errorf("unsupported backend %q (use wan22, wan21, or lvp)", raw)
	}
}

// Granularity is how a backend consumes pending work.
type Granularity int

const (
	// PerSample backends run one subprocess per manifest row.
	PerSample Granularity = iota
	// PerSlice backends consume every pending row in one invocation.
	PerSlice
)

// Invocation carries one manifest row plus its slice context and the log
// destination for the backend's combined output.
type Invocation struct {
	Sample  manifest.TaskRow
	Slice   runs.Slice
	LogPath string
}

// Backend is the invocation contract shared by all model backends.
type Backend interface {
	Kind() Kind
	CheckpointDir() string
	Granularity() Granularity

	// RunSample generates one sample. Only valid for PerSample backends.
	RunSample(ctx context.Context, inv Invocation) error

	// RunSlice generates every pending sample in one invocation and returns
	// the ids whose output file is still missing afterwards. Only valid for
	// PerSlice backends.
	RunSlice(ctx context.Context, invs []Invocation) ([]string, error)
}

// For constructs the backend for a kind from its configuration section.
func For(kind Kind, cfg *config.Config, run runs.Run) (Backend, error) {
	settings, ok := cfg.BackendFor(string(kind))
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "backends", "select",
			fmt.Sprintf("no configuration for backend %q", kind), nil)
	}
	switch kind {
	case KindWan22, KindWan21:
		return newWan(kind, settings), nil
	case KindLVP:
		return newLVP(settings, run), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "backends", "select",
			fmt.Sprintf("unsupported backend %q", kind), nil)
	}
}
