package cardia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/classifier"
	"github.com/mwiater/cardia/internal/evaluation"
	"github.com/mwiater/cardia/internal/logging"
	"github.com/mwiater/cardia/internal/patient"
	"github.com/mwiater/cardia/internal/tui"
)

const ageModel = `{"family":"logreg","classes":[0,1],"params":{
	"coef":[[0,0.05,0,0,0,0,0,0,0,0]],"intercept":[-2.5]}}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ageTree(threshold float64) string {
	return fmt.Sprintf(`{"family":"dt","classes":[0,1],"params":{"nodes":[
		{"feature":1,"threshold":%v,"left":1,"right":2},
		{"feature":0,"threshold":0,"left":-1,"right":-1,"value":[1,0]},
		{"feature":0,"threshold":0,"left":-1,"right":-1,"value":[0,1]}]}}`, threshold)
}

// reporterFixture lays out a test set and a models directory with three
// decision trees and one corrupt artifact.
func reporterFixture(t *testing.T) appconfig.ReporterConfig {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("ca,age,sex,cp,trestbps,chol,fbs,restecg,thalach,oldpeak\n")
	for _, age := range []int{40, 50, 60, 70} {
		fmt.Fprintf(&b, "0,%d,1,2,130,246,0,1,150,1.0\n", age)
	}
	models := filepath.Join(dir, "models")
	if err := os.Mkdir(models, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, models, "pipeline_rf.model", ageTree(55))
	writeFile(t, models, "pipeline_dt.model", ageTree(65))
	writeFile(t, models, "pipeline_knn.model", ageTree(45))
	writeFile(t, models, "pipeline_svm.model", "not an artifact")

	return appconfig.ReporterConfig{
		ModelsDir:    models,
		TestFeatures: writeFile(t, dir, "X_test.csv", b.String()),
		TestLabels:   writeFile(t, dir, "y_test.csv", "target\n0\n0\n1\n1\n"),
		Workers:      2,
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "predict": false, "ping": false, "compare": false, "detail": false, "show": false, "list": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected %q to be registered on the root command", name)
		}
	}
	if showConfigCmd.Parent() != showCmd {
		t.Fatal("expected config under show")
	}
	if commandsCmd.Parent() != listCmd {
		t.Fatal("expected commands under list")
	}
}

func TestCollectCommandData(t *testing.T) {
	root := &cobra.Command{Use: "root", Short: "root cmd"}
	parent := &cobra.Command{Use: "parent", Short: "parent cmd"}
	child := &cobra.Command{Use: "child", Short: "child cmd"}
	parent.AddCommand(child)
	root.AddCommand(parent)

	got := collectCommandData(root, "", "")
	want := []commandInfo{
		{path: "root", description: "root cmd"},
		{path: "  root parent", description: "parent cmd"},
		{path: "    root parent child", description: "child cmd"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestRunListCommands(t *testing.T) {
	var buf bytes.Buffer
	runListCommands(&buf, rootCmd)
	out := buf.String()
	for _, want := range []string{"Commands and Subcommands:", "cardia serve", "cardia show config", "cardia list commands"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "completion") {
		t.Fatalf("completion commands should be hidden:\n%s", out)
	}
}

func TestRunCompareWithDetailAndExport(t *testing.T) {
	cfg := reporterFixture(t)
	export := filepath.Join(t.TempDir(), "comparison.json")

	var buf bytes.Buffer
	err := runCompare(context.Background(), cfg, compareOptions{detail: "Random Forest", export: export}, &buf)
	if err != nil {
		t.Fatalf("runCompare error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Model comparison", "Best model", "Random Forest", "Skipped 1 artifact(s)", "pipeline_svm.model", "Confusion matrix", "Comparison written to"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(export)
	if err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	var doc struct {
		Comparison struct {
			Ranked []struct {
				File string `json:"file"`
			} `json:"ranked"`
		} `json:"comparison"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(doc.Comparison.Ranked) != 3 || doc.Comparison.Ranked[0].File != "pipeline_rf.model" {
		t.Fatalf("unexpected exported ranking: %+v", doc.Comparison.Ranked)
	}
}

func TestRunCompareDetailOnly(t *testing.T) {
	cfg := reporterFixture(t)

	var buf bytes.Buffer
	if err := runCompare(context.Background(), cfg, compareOptions{detail: "pipeline_knn.model", detailOnly: true}, &buf); err != nil {
		t.Fatalf("runCompare error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "Model comparison") {
		t.Fatalf("detail-only output should skip the ranking:\n%s", out)
	}
	if !strings.Contains(out, "pipeline_knn.model") || !strings.Contains(out, "weighted avg") {
		t.Fatalf("expected knn detail report:\n%s", out)
	}
}

func TestRunCompareUnknownModel(t *testing.T) {
	cfg := reporterFixture(t)
	err := runCompare(context.Background(), cfg, compareOptions{detail: "Naive Bayes"}, io.Discard)
	if !errors.Is(err, evaluation.ErrModelNotRanked) {
		t.Fatalf("expected ErrModelNotRanked, got %v", err)
	}
}

func TestRunCompareMissingTestSet(t *testing.T) {
	cfg := reporterFixture(t)
	cfg.TestLabels = filepath.Join(t.TempDir(), "missing.csv")
	if err := runCompare(context.Background(), cfg, compareOptions{}, io.Discard); err == nil {
		t.Fatal("expected an error for a missing label file")
	}
}

func TestRunCompareInteractive(t *testing.T) {
	orig := pickModel
	t.Cleanup(func() { pickModel = orig })

	cfg := reporterFixture(t)

	var offered int
	pickModel = func(cmp *evaluation.Comparison) (string, error) {
		offered = len(cmp.Ranked)
		return "pipeline_dt.model", nil
	}
	var buf bytes.Buffer
	if err := runCompare(context.Background(), cfg, compareOptions{interactive: true}, &buf); err != nil {
		t.Fatalf("runCompare error: %v", err)
	}
	if offered != 3 {
		t.Fatalf("expected the picker to see 3 ranked models, got %d", offered)
	}
	if !strings.Contains(buf.String(), "Confusion matrix") {
		t.Fatalf("expected a detail report after picking:\n%s", buf.String())
	}

	pickModel = func(*evaluation.Comparison) (string, error) { return "", tui.ErrCancelled }
	buf.Reset()
	if err := runCompare(context.Background(), cfg, compareOptions{interactive: true}, &buf); err != nil {
		t.Fatalf("cancelling the picker should not fail, got %v", err)
	}
	if strings.Contains(buf.String(), "Confusion matrix") {
		t.Fatal("no detail report expected after cancelling")
	}
}

func TestRunServeModelLoadFailure(t *testing.T) {
	orig := listen
	t.Cleanup(func() { listen = orig })
	listen = func(string, string) (net.Listener, error) {
		t.Fatal("listen must not be called when the model fails to load")
		return nil, nil
	}

	cfg := appconfig.ServerConfig{ModelPath: filepath.Join(t.TempDir(), "missing.model")}
	err := runServe(context.Background(), cfg, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "load model") {
		t.Fatalf("expected a load model error, got %v", err)
	}
}

func TestRunServeLifecycle(t *testing.T) {
	origListen, origLoad := listen, loadModel
	t.Cleanup(func() { listen, loadModel = origListen, origLoad })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	listen = func(string, string) (net.Listener, error) { return ln, nil }
	loadModel = func(string) (classifier.Classifier, error) {
		return classifier.Decode(strings.NewReader(ageModel))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, appconfig.ServerConfig{ModelPath: "age.model"}, io.Discard) }()

	base := "http://" + ln.Addr().String()
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(base + "/")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("service never answered: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from GET /, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancellation")
	}
}

func exampleRecord() patient.Record {
	return patient.Record{CA: 0, Age: 54, Sex: 1, CP: 2, Trestbps: 130, Chol: 246, FBS: 0, RestECG: 1, Thalach: 150, Oldpeak: 1.0}
}

func TestRunPredict(t *testing.T) {
	var got patient.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction":1,"confidence":0.5498}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	cfg := appconfig.ClientConfig{URL: srv.URL, TimeoutSeconds: 5}
	if err := runPredict(context.Background(), cfg, exampleRecord(), false, &buf); err != nil {
		t.Fatalf("runPredict error: %v", err)
	}
	if got != exampleRecord() {
		t.Fatalf("server received %+v", got)
	}
	out := buf.String()
	if !strings.Contains(out, patient.DescribeTarget(1)) || !strings.Contains(out, "54.98%") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestRunPredictServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
	}))
	defer srv.Close()

	cfg := appconfig.ClientConfig{URL: srv.URL, TimeoutSeconds: 5}
	if err := runPredict(context.Background(), cfg, exampleRecord(), false, io.Discard); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestRecordFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "predict"}
	for _, name := range intFields {
		cmd.Flags().Int(name, 0, "")
	}
	for _, name := range floatFields {
		cmd.Flags().Float64(name, 0, "")
	}
	args := []string{"--ca=0", "--age=54", "--sex=1", "--cp=2", "--trestbps=130", "--chol=246", "--fbs=0", "--restecg=1", "--thalach=150", "--oldpeak=1.0"}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	rec, err := recordFromFlags(cmd)
	if err != nil {
		t.Fatalf("recordFromFlags error: %v", err)
	}
	if rec != exampleRecord() {
		t.Fatalf("expected %+v, got %+v", exampleRecord(), rec)
	}
}

func TestPredictFlagsRequired(t *testing.T) {
	for _, name := range append(append([]string{}, intFields...), floatFields...) {
		f := predictCmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("expected flag --%s", name)
		}
		if _, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; !ok {
			t.Fatalf("expected --%s to be required", name)
		}
	}
}

func TestGetConfigDefaults(t *testing.T) {
	orig := currentConfig
	t.Cleanup(func() { currentConfig = orig })
	currentConfig = nil

	cfg := GetConfig()
	if cfg.Server.Addr() != "127.0.0.1:8000" {
		t.Fatalf("expected default address, got %s", cfg.Server.Addr())
	}
}

func TestShowConfigCommand(t *testing.T) {
	origConfig := currentConfig
	t.Cleanup(func() {
		currentConfig = origConfig
		_ = logging.Close()
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "server:\n  port: 9001\nreporter:\n  workers: 3\n")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"show", "config", "--config", cfgPath, "--logFile", filepath.Join(dir, "cardia.log")})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("show config failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Config file: " + cfgPath, "127.0.0.1:9001", "Workers:          3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestInvalidConfigFileRejected(t *testing.T) {
	origConfig := currentConfig
	t.Cleanup(func() {
		currentConfig = origConfig
		_ = logging.Close()
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "invalid.yaml", "server:\n  port: 70000\n")

	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"show", "config", "--config", cfgPath, "--logFile", filepath.Join(dir, "cardia.log")})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), cfgPath) || !strings.Contains(err.Error(), "server.port") {
		t.Fatalf("expected a validation error naming the file, got %v", err)
	}
}
