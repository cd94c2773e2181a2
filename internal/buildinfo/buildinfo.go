// Package buildinfo carries version identifiers stamped at link time via
// -ldflags "-X fleetsync/internal/buildinfo.Version=...".
package buildinfo

const Service = "fleetsync"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"service": Service,
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
