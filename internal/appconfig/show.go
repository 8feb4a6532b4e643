package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration summary. With verbose set the
// full struct is dumped as well.
func ShowConfig(out io.Writer, file string, cfg Config, verbose bool) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:            %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Log File:         %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Listen Address:   %s\n", cfg.Server.Addr())
	fmt.Fprintf(out, "  Served Model:     %s\n", cfg.Server.ModelPath)
	fmt.Fprintf(out, "  Models Directory: %s (*%s)\n", cfg.Reporter.ModelsDir, cfg.Reporter.ArtifactExt())
	fmt.Fprintf(out, "  Test Features:    %s\n", cfg.Reporter.TestFeatures)
	fmt.Fprintf(out, "  Test Labels:      %s\n", cfg.Reporter.TestLabels)
	fmt.Fprintf(out, "  Workers:          %d\n", cfg.Reporter.WorkerCount())
	fmt.Fprintf(out, "  Service URL:      %s (timeout %s)\n", cfg.Client.URL, cfg.Client.Timeout())

	if verbose {
		fmt.Fprintln(out)
		pp.Fprintln(out, cfg)
	}
}
