// internal/cli/serve.go
package cardia

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/classifier"
	"github.com/mwiater/cardia/internal/inference"
	"github.com/mwiater/cardia/internal/logging"
)

var (
	loadModel = func(path string) (classifier.Classifier, error) {
		art, err := classifier.Load(path)
		if err != nil {
			return nil, err
		}
		return art, nil
	}
	listen = net.Listen
)

// serveCmd implements 'serve', which loads one artifact and serves
// predictions over HTTP until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions from one model artifact over HTTP",
	Long:  `The 'serve' command loads the configured model artifact and exposes GET / and POST /predict. A model that cannot be loaded aborts startup.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, GetConfig().Server, cmd.OutOrStdout())
	},
}

func init() {
	serveCmd.Flags().String("host", "", "interface to bind")
	serveCmd.Flags().Int("port", 0, "port to listen on")
	serveCmd.Flags().String("model", "", "path to the model artifact to serve")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.modelPath", serveCmd.Flags().Lookup("model"))

	rootCmd.AddCommand(serveCmd)
}

// runServe loads the model, then serves until ctx is cancelled.
func runServe(ctx context.Context, cfg appconfig.ServerConfig, out io.Writer) error {
	model, err := loadModel(cfg.ModelPath)
	if err != nil {
		logging.L().Error("model load failed", zap.String("path", cfg.ModelPath), zap.Error(err))
		return fmt.Errorf("load model: %w", err)
	}
	logging.LogEvent("model loaded from %s", cfg.ModelPath)

	ln, err := listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}

	srv := inference.NewServer(cfg, inference.NewService(model))
	fmt.Fprintf(out, "Serving %s on http://%s\n", cfg.ModelPath, ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
