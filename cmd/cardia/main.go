// cmd/cardia/main.go
package main

import (
	"os"

	cmd "github.com/mwiater/cardia/internal/cli"
	"github.com/mwiater/cardia/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
	closeLogging   = logging.Close
	exit           = os.Exit
)

// main starts the cardia CLI by delegating to the cobra root command. Logging
// is flushed before the process exits.
func main() {
	setVersionInfo(version, commit, date)
	err := executeCmd()
	_ = closeLogging()
	if err != nil {
		exit(1)
	}
}
