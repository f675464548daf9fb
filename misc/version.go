// Package misc keeps program identification stamped at build time.
package misc

// Set with -ldflags "-X critcss/misc.version=... -X critcss/misc.githash=..."
var (
	version = "dev"
	githash = "unknown"
)

func GetAppName() string {
	return "critcss"
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return githash
}
