// Package buildinfo exposes build-time metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/findrapp/findr/internal/buildinfo.version=v1.2.0"
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected.
const UnknownValue = "unknown"

var (
	version   string
	commit    string
	buildDate string
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Current returns the injected metadata with unknown fields filled in.
func Current() Info {
	return Info{
		Version:   orUnknown(version),
		Commit:    orUnknown(commit),
		BuildDate: orUnknown(buildDate),
	}
}

// String renders the info for `findr --version`.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}

// Release is the release name reported to error telemetry.
func (i Info) Release() string {
	return "findr@" + i.Version
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}
