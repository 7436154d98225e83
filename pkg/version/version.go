// Package version exposes the application identity and build version.
package version

// Application identity. These mirror the values the mobile build declared and
// are reported unchanged by the daemon.
const (
	AppID       = "com.nemesis.mocktraffic"
	VersionCode = 2
	VersionName = "1.1"
)

// Version is the build version of the daemon.
// This should be set at build time using ldflags.
var Version = "dev"

// BuildInfo describes the running binary.
type BuildInfo struct {
	AppID       string `json:"app_id"`
	VersionCode int    `json:"version_code"`
	VersionName string `json:"version_name"`
	Version     string `json:"version"`
}

// Info returns the build information of the running binary.
func Info() BuildInfo {
	return BuildInfo{
		AppID:       AppID,
		VersionCode: VersionCode,
		VersionName: VersionName,
		Version:     Version,
	}
}
