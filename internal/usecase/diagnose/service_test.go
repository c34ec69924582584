package diagnose

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/phytodex/internal/domain"
	"github.com/kailas-cloud/phytodex/internal/image"
	"github.com/kailas-cloud/phytodex/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterAIMetrics()
	os.Exit(m.Run())
}

type mockPreparer struct {
	prepared image.Prepared
	err      error
}

func (m *mockPreparer) Prepare(_ []byte) (image.Prepared, error) {
	return m.prepared, m.err
}

type mockVision struct {
	scores      map[string]float64
	classifyErr error

	generated   string
	generateErr error

	classifyCalls int
	generateCalls int
	lastPrompt    string
	lastParams    domain.GenerateParams
}

func (m *mockVision) Classify(_ context.Context, _ []byte, _ []domain.LabelPrompt) (map[string]float64, error) {
	m.classifyCalls++
	return m.scores, m.classifyErr
}

func (m *mockVision) Generate(_ context.Context, prompt string, params domain.GenerateParams) (string, error) {
	m.generateCalls++
	m.lastPrompt = prompt
	m.lastParams = params
	return m.generated, m.generateErr
}

func newTestService(t *testing.T, mv *mockVision) *Service {
	t.Helper()
	mp := &mockPreparer{prepared: image.Prepared{Data: []byte{0xFF, 0xD8}, Width: 224, Height: 224}}
	return New(mp, mv, nil, domain.GenerateParams{MaxTokens: 128, NumBeams: 4}, zap.NewNop())
}

func allScores(v float64) map[string]float64 {
	scores := make(map[string]float64)
	for _, lp := range domain.DefaultLabelPrompts() {
		scores[lp.Label] = v
	}
	return scores
}

func TestDiagnose_HappyPath(t *testing.T) {
	scores := allScores(10.0)
	scores["Fungi"] = 20.0 // clear winner

	mv := &mockVision{scores: scores, generated: "Apply copper-based fungicide."}
	svc := newTestService(t, mv)

	pred, err := svc.Diagnose(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Disease != "Fungi" {
		t.Errorf("expected Fungi, got %s", pred.Disease)
	}
	if pred.Recommendation != "Apply copper-based fungicide." {
		t.Errorf("unexpected recommendation: %s", pred.Recommendation)
	}
	if pred.Confidence <= 0.5 {
		t.Errorf("expected dominant confidence, got %f", pred.Confidence)
	}
	if mv.lastPrompt != "Recommend treatment for potato disease: Fungi" {
		t.Errorf("unexpected generate prompt: %q", mv.lastPrompt)
	}
	if mv.lastParams.MaxTokens != 128 || mv.lastParams.NumBeams != 4 {
		t.Errorf("unexpected generate params: %+v", mv.lastParams)
	}
}

func TestDiagnose_ProbabilitiesSumToOne(t *testing.T) {
	scores := allScores(5.0)
	scores["Virus"] = 8.0
	scores["Healthy"] = 2.0

	mv := &mockVision{scores: scores, generated: "ok"}
	svc := newTestService(t, mv)

	pred, err := svc.Diagnose(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pred.Probabilities) != 7 {
		t.Fatalf("expected 7 class probabilities, got %d", len(pred.Probabilities))
	}
	var sum float64
	for _, p := range pred.Probabilities {
		if p < 0 || p > 1 {
			t.Errorf("probability out of range: %f", p)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("probabilities sum to %f, expected 1", sum)
	}
	if pred.Disease != "Virus" {
		t.Errorf("expected Virus argmax, got %s", pred.Disease)
	}
	if math.Abs(pred.Confidence-pred.Probabilities["Virus"]) > 1e-12 {
		t.Errorf("confidence %f != argmax probability %f", pred.Confidence, pred.Probabilities["Virus"])
	}
}

func TestDiagnose_LargeLogitsDoNotOverflow(t *testing.T) {
	scores := allScores(1000.0)
	scores["Pest"] = 1010.0

	mv := &mockVision{scores: scores, generated: "ok"}
	svc := newTestService(t, mv)

	pred, err := svc.Diagnose(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Disease != "Pest" {
		t.Errorf("expected Pest, got %s", pred.Disease)
	}
	for label, p := range pred.Probabilities {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Errorf("probability for %s is not finite: %f", label, p)
		}
	}
}

func TestDiagnose_TieBreaksByLabelOrder(t *testing.T) {
	// All equal: the first configured label wins.
	mv := &mockVision{scores: allScores(1.0), generated: "ok"}
	svc := newTestService(t, mv)

	pred, err := svc.Diagnose(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Disease != "Bacteria" {
		t.Errorf("expected first label Bacteria on tie, got %s", pred.Disease)
	}
}

func TestDiagnose_InvalidImage(t *testing.T) {
	mp := &mockPreparer{err: domain.ErrInvalidImage}
	mv := &mockVision{}
	svc := New(mp, mv, nil, domain.GenerateParams{}, zap.NewNop())

	_, err := svc.Diagnose(context.Background(), []byte("not an image"))
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if mv.classifyCalls != 0 {
		t.Error("Classify must not be called for invalid images")
	}
}

func TestDiagnose_ClassifyError(t *testing.T) {
	mv := &mockVision{classifyErr: domain.ErrVisionProviderError}
	svc := newTestService(t, mv)

	_, err := svc.Diagnose(context.Background(), []byte("img"))
	if !errors.Is(err, domain.ErrVisionProviderError) {
		t.Fatalf("expected ErrVisionProviderError, got %v", err)
	}
	if mv.generateCalls != 0 {
		t.Error("Generate must not be called when classification fails")
	}
}

func TestDiagnose_GenerateErrorIsAtomic(t *testing.T) {
	mv := &mockVision{scores: allScores(1.0), generateErr: domain.ErrVisionProviderError}
	svc := newTestService(t, mv)

	pred, err := svc.Diagnose(context.Background(), []byte("img"))
	if !errors.Is(err, domain.ErrVisionProviderError) {
		t.Fatalf("expected ErrVisionProviderError, got %v", err)
	}
	// Nothing partial comes back even though classification succeeded.
	if pred.Disease != "" || pred.Probabilities != nil {
		t.Errorf("expected zero prediction on generate failure, got %+v", pred)
	}
}

func TestDiagnose_MissingLabelScore(t *testing.T) {
	scores := allScores(1.0)
	delete(scores, "Nematode")

	mv := &mockVision{scores: scores}
	svc := newTestService(t, mv)

	_, err := svc.Diagnose(context.Background(), []byte("img"))
	if !errors.Is(err, domain.ErrVisionProviderError) {
		t.Fatalf("expected ErrVisionProviderError for missing label, got %v", err)
	}
}

func TestDiagnose_CustomLabels(t *testing.T) {
	labels := []domain.LabelPrompt{
		{Label: "Rust", Prompt: "a wheat leaf with rust"},
		{Label: "Clean", Prompt: "a healthy wheat leaf"},
	}
	mp := &mockPreparer{prepared: image.Prepared{Data: []byte{1}}}
	mv := &mockVision{
		scores:    map[string]float64{"Rust": 3.0, "Clean": 1.0},
		generated: "ok",
	}
	svc := New(mp, mv, labels, domain.GenerateParams{}, zap.NewNop())

	pred, err := svc.Diagnose(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Disease != "Rust" {
		t.Errorf("expected Rust, got %s", pred.Disease)
	}
	if len(pred.Probabilities) != 2 {
		t.Errorf("expected 2 probabilities, got %d", len(pred.Probabilities))
	}
}
