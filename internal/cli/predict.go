// internal/cli/predict.go
package cardia

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/client"
	"github.com/mwiater/cardia/internal/patient"
)

// predictCmd implements 'predict', which sends one patient record to a
// running inference service.
var predictCmd = &cobra.Command{
	Use:     "predict",
	Short:   "Send one patient record to a running inference service",
	Long:    `The 'predict' command posts the ten clinical attributes to the service's /predict endpoint and prints the predicted class and its confidence. The call is made once; failures are reported, never retried.`,
	Args:    cobra.NoArgs,
	PreRunE: bindClientFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recordFromFlags(cmd)
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		return runPredict(cmd.Context(), GetConfig().Client, rec, verbose, cmd.OutOrStdout())
	},
}

// pingCmd implements 'ping', which checks that the service is reachable.
var pingCmd = &cobra.Command{
	Use:     "ping",
	Short:   "Check that the inference service is reachable",
	Args:    cobra.NoArgs,
	PreRunE: bindClientFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig().Client
		msg, err := client.FromConfig(cfg).Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", cfg.URL, msg)
		return nil
	},
}

var (
	intFields   = []string{"ca", "age", "sex", "cp", "fbs", "restecg"}
	floatFields = []string{"trestbps", "chol", "thalach", "oldpeak"}
)

func init() {
	for _, c := range []*cobra.Command{predictCmd, pingCmd} {
		c.Flags().String("url", "", "base URL of the inference service")
		c.Flags().Int("timeout", 0, "request timeout in seconds")
	}
	for _, name := range intFields {
		predictCmd.Flags().Int(name, 0, patient.FieldHelp(name))
		_ = predictCmd.MarkFlagRequired(name)
	}
	for _, name := range floatFields {
		predictCmd.Flags().Float64(name, 0, patient.FieldHelp(name))
		_ = predictCmd.MarkFlagRequired(name)
	}
	predictCmd.Flags().BoolP("verbose", "v", false, "dump the request record and response")

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(pingCmd)
}

// bindClientFlags is a PreRunE hook shared by predict and ping.
func bindClientFlags(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlag("client.url", cmd.Flags().Lookup("url")); err != nil {
		return err
	}
	if err := viper.BindPFlag("client.timeout", cmd.Flags().Lookup("timeout")); err != nil {
		return err
	}
	return viper.UnmarshalKey("client", &GetConfig().Client)
}

func recordFromFlags(cmd *cobra.Command) (patient.Record, error) {
	ints := make(map[string]int, len(intFields))
	for _, name := range intFields {
		v, err := cmd.Flags().GetInt(name)
		if err != nil {
			return patient.Record{}, err
		}
		ints[name] = v
	}
	floats := make(map[string]float64, len(floatFields))
	for _, name := range floatFields {
		v, err := cmd.Flags().GetFloat64(name)
		if err != nil {
			return patient.Record{}, err
		}
		floats[name] = v
	}
	return patient.Record{
		CA:       ints["ca"],
		Age:      ints["age"],
		Sex:      ints["sex"],
		CP:       ints["cp"],
		Trestbps: floats["trestbps"],
		Chol:     floats["chol"],
		FBS:      ints["fbs"],
		RestECG:  ints["restecg"],
		Thalach:  floats["thalach"],
		Oldpeak:  floats["oldpeak"],
	}, nil
}

func runPredict(ctx context.Context, cfg appconfig.ClientConfig, rec patient.Record, verbose bool, out io.Writer) error {
	if verbose {
		pp.Fprintln(out, rec)
	}

	res, err := client.FromConfig(cfg).Predict(ctx, rec)
	if err != nil {
		return err
	}
	if verbose {
		pp.Fprintln(out, res)
	}

	verdict := color.New(color.FgGreen, color.Bold)
	if res.Prediction != 0 {
		verdict = color.New(color.FgRed, color.Bold)
	}
	verdict.Fprintf(out, "%s", patient.DescribeTarget(res.Prediction))
	fmt.Fprintf(out, " (class %d, confidence %.2f%%)\n", res.Prediction, res.Confidence*100)
	return nil
}
