package version

import "fmt"

var (
	CLIName    = "sentinel"
	CLIVersion = "0.1.0"
	Commit     = "unknown"
	BuildDate  = "unknown"
)

func Long() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", CLIName, CLIVersion, Commit, BuildDate)
}
