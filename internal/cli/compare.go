// internal/cli/compare.go
package cardia

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/evaluation"
	"github.com/mwiater/cardia/internal/logging"
	"github.com/mwiater/cardia/internal/report"
	"github.com/mwiater/cardia/internal/tui"
)

// pickModel runs the interactive selector; tests replace it.
var pickModel = tui.Pick

type compareOptions struct {
	interactive bool
	detail      string
	export      string
	detailOnly  bool
}

// compareCmd implements 'compare', which scores every artifact in the models
// directory against the held-out test set and prints the ranking.
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank every model artifact by weighted F1 on the test set",
	Long:  `The 'compare' command loads the test set and every artifact in the models directory, ranks them by weighted F1 and optionally prints the detail report for one model.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := compareOptions{}
		opts.interactive, _ = cmd.Flags().GetBool("interactive")
		opts.detail, _ = cmd.Flags().GetString("detail")
		opts.export, _ = cmd.Flags().GetString("export")
		cfg, err := reporterConfig(cmd)
		if err != nil {
			return err
		}
		return runCompare(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

// detailCmd implements 'detail', which prints the full report for one
// ranked model.
var detailCmd = &cobra.Command{
	Use:   "detail MODEL",
	Short: "Show the classification report and confusion matrix for one model",
	Long:  `The 'detail' command ranks the models directory, then re-evaluates the model named by MODEL (a label such as "Random Forest" or an artifact filename) and prints its per-class report and confusion matrix.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := reporterConfig(cmd)
		if err != nil {
			return err
		}
		opts := compareOptions{detail: args[0], detailOnly: true}
		return runCompare(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{compareCmd, detailCmd} {
		c.Flags().String("models-dir", "", "directory holding model artifacts")
		c.Flags().String("features", "", "test feature CSV")
		c.Flags().String("labels", "", "test label CSV")
		c.Flags().Int("workers", 0, "artifacts evaluated in parallel (0 = CPU count)")
	}
	compareCmd.Flags().BoolP("interactive", "i", false, "pick the detail model interactively")
	compareCmd.Flags().String("detail", "", "print the detail report for this model")
	compareCmd.Flags().String("export", "", "write the comparison to a .json or .yaml file")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(detailCmd)
}

// reporterConfig binds the reporter flags of the running command and returns
// the merged reporter section. compare and detail share the same keys, so
// binding happens at run time rather than in init.
func reporterConfig(cmd *cobra.Command) (appconfig.ReporterConfig, error) {
	for key, flag := range map[string]string{
		"reporter.modelsDir":    "models-dir",
		"reporter.testFeatures": "features",
		"reporter.testLabels":   "labels",
		"reporter.workers":      "workers",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return appconfig.ReporterConfig{}, err
		}
	}
	var cfg appconfig.ReporterConfig
	if err := viper.UnmarshalKey("reporter", &cfg); err != nil {
		return appconfig.ReporterConfig{}, fmt.Errorf("unmarshal reporter config: %w", err)
	}
	return cfg, nil
}

func runCompare(ctx context.Context, cfg appconfig.ReporterConfig, opts compareOptions, out io.Writer) error {
	ts, err := evaluation.LoadTestSet(cfg.TestFeatures, cfg.TestLabels)
	if err != nil {
		return fmt.Errorf("load test set: %w", err)
	}
	summary := ts.Summary()

	reporter := evaluation.NewReporter(ts,
		evaluation.WithExtension(cfg.ArtifactExt()),
		evaluation.WithWorkers(cfg.WorkerCount()),
		evaluation.WithLogger(logging.L()),
	)
	cmp, err := reporter.Compare(ctx, cfg.ModelsDir)
	if err != nil {
		return err
	}

	if !opts.detailOnly {
		fmt.Fprint(out, report.RenderRanking(cmp, summary))
	}
	if opts.export != "" {
		if err := report.Export(opts.export, report.Document{TestSet: summary, Comparison: cmp}); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		logging.LogEvent("comparison exported to %s", opts.export)
		fmt.Fprintf(out, "Comparison written to %s\n", opts.export)
	}

	key := opts.detail
	if opts.interactive && key == "" {
		key, err = pickModel(cmp)
		if errors.Is(err, tui.ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	if key == "" {
		return nil
	}

	ev, err := reporter.Detail(ctx, cmp, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, report.RenderDetail(ev))
	return nil
}
