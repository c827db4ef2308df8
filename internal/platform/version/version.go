// Package version exposes build metadata set through -ldflags.
package version

import "runtime"

const product = "spot95"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// UserAgent identifies outbound API calls, e.g. "spot95/1.4.0 (3f2c1ab)".
func UserAgent() string {
	if Commit == "" || Commit == "unknown" {
		return product + "/" + Version
	}
	short := Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return product + "/" + Version + " (" + short + ")"
}
