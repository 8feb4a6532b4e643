package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/cardia/internal/appconfig"
	"github.com/mwiater/cardia/internal/classifier"
	"github.com/mwiater/cardia/internal/patient"
)

const exampleRequest = `{"ca":0,"age":54,"sex":1,"cp":2,"trestbps":130,"chol":246,"fbs":0,"restecg":1,"thalach":150,"oldpeak":1.0}`

// ageModel is a logistic regression that only looks at age: z = 0.05*age - 2.5.
const ageModel = `{"family":"logreg","classes":[0,1],"params":{
	"coef":[[0,0.05,0,0,0,0,0,0,0,0]],"intercept":[-2.5]}}`

func loadAgeModel(t *testing.T) classifier.Classifier {
	t.Helper()
	art, err := classifier.Decode(strings.NewReader(ageModel))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return art
}

type stubModel struct {
	label int
	proba []float64
	err   error
	panic bool
}

func (m stubModel) Predict([]float64) (int, error) {
	if m.panic {
		panic("stub exploded")
	}
	return m.label, m.err
}

func (m stubModel) PredictProba([]float64) ([]float64, error) { return m.proba, m.err }

func newTestHandler(model classifier.Classifier) http.Handler {
	return NewServer(appconfig.ServerConfig{}, NewService(model)).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error json %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestRoot(t *testing.T) {
	w := do(t, newTestHandler(loadAgeModel(t)), http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload["message"] == "" {
		t.Fatalf("expected acknowledgement message, got %v", payload)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestHealthz(t *testing.T) {
	w := do(t, newTestHandler(loadAgeModel(t)), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", w.Code, w.Body.String())
	}
}

func TestPredictExample(t *testing.T) {
	w := do(t, newTestHandler(loadAgeModel(t)), http.MethodPost, "/predict", exampleRequest)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if res.Prediction != 1 || res.Confidence != 0.5498 {
		t.Fatalf("unexpected result %+v", res)
	}
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if len(raw) != 2 {
		t.Fatalf("expected exactly prediction and confidence, got %v", raw)
	}
}

func TestPredictMissingFieldIs422(t *testing.T) {
	h := newTestHandler(loadAgeModel(t))
	for _, field := range patient.FeatureNames() {
		var body map[string]any
		if err := json.Unmarshal([]byte(exampleRequest), &body); err != nil {
			t.Fatal(err)
		}
		delete(body, field)
		data, _ := json.Marshal(body)

		w := do(t, h, http.MethodPost, "/predict", string(data))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("missing %s: expected 422, got %d", field, w.Code)
		}
		resp := decodeError(t, w)
		if len(resp.Detail) != 1 || resp.Detail[0].Field != field || resp.Detail[0].Type != "required" {
			t.Fatalf("missing %s: unexpected detail %+v", field, resp.Detail)
		}
	}
}

func TestPredictRejectsBadBodies(t *testing.T) {
	h := newTestHandler(loadAgeModel(t))
	cases := map[string]string{
		"string number": strings.Replace(exampleRequest, `"age":54`, `"age":"54"`, 1),
		"fractional":    strings.Replace(exampleRequest, `"cp":2`, `"cp":2.5`, 1),
		"out of range":  strings.Replace(exampleRequest, `"sex":1`, `"sex":3`, 1),
		"huge age":      strings.Replace(exampleRequest, `"age":54`, `"age":1e20`, 1),
		"malformed":     `{"ca":0,`,
		"empty":         ``,
		"array":         `[]`,
	}
	for name, body := range cases {
		w := do(t, h, http.MethodPost, "/predict", body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d: %s", name, w.Code, w.Body.String())
		}
		if resp := decodeError(t, w); len(resp.Detail) == 0 {
			t.Fatalf("%s: expected field detail", name)
		}
	}
}

func TestPredictDeterministic(t *testing.T) {
	h := newTestHandler(loadAgeModel(t))
	first := do(t, h, http.MethodPost, "/predict", exampleRequest).Body.String()
	for i := 0; i < 5; i++ {
		if got := do(t, h, http.MethodPost, "/predict", exampleRequest).Body.String(); got != first {
			t.Fatalf("response changed: %q vs %q", got, first)
		}
	}
}

func TestPredictInferenceFailureDoesNotLeak(t *testing.T) {
	h := newTestHandler(stubModel{err: errors.New("weights at /srv/secret missing")})
	w := do(t, h, http.MethodPost, "/predict", exampleRequest)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Fatalf("internal detail leaked: %s", w.Body.String())
	}
	if resp := decodeError(t, w); resp.Error != internalErrorMessage {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestPredictPanicIsRecovered(t *testing.T) {
	w := do(t, newTestHandler(stubModel{panic: true}), http.MethodPost, "/predict", exampleRequest)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "exploded") {
		t.Fatalf("panic value leaked: %s", w.Body.String())
	}
}

func TestBodyTooLarge(t *testing.T) {
	body := `{"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	w := do(t, newTestHandler(loadAgeModel(t)), http.MethodPost, "/predict", body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := do(t, newTestHandler(loadAgeModel(t)), http.MethodGet, "/predict", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestHandler(loadAgeModel(t))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestServiceConfidenceRange(t *testing.T) {
	svc := NewService(loadAgeModel(t))
	for age := 0; age <= 120; age += 5 {
		res, err := svc.Predict(patient.Record{Age: age})
		if err != nil {
			t.Fatalf("Predict error: %v", err)
		}
		if res.Confidence < 0.5 || res.Confidence > 1 {
			t.Fatalf("age %d: confidence %v out of range", age, res.Confidence)
		}
		if res.Confidence != math.Round(res.Confidence*1e4)/1e4 {
			t.Fatalf("confidence %v not rounded to 4 decimals", res.Confidence)
		}
	}
}

func TestServiceRejectsBadProbabilities(t *testing.T) {
	cases := map[string]stubModel{
		"nan":      {proba: []float64{math.NaN(), 0.5}},
		"negative": {proba: []float64{-0.1, 1.1}},
		"empty":    {proba: nil},
	}
	for name, m := range cases {
		_, err := NewService(m).Predict(patient.Record{})
		var ie *InferenceError
		if !errors.As(err, &ie) {
			t.Fatalf("%s: expected InferenceError, got %v", name, err)
		}
	}
}

func TestNewServiceNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil classifier")
		}
	}()
	NewService(nil)
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(appconfig.ServerConfig{}, NewService(loadAgeModel(t)))
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/predict", "application/json", bytes.NewBufferString(exampleRequest))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}
