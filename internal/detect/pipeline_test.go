package detect

import (
	"context"
	"image"
	"strings"
	"sync"
	"testing"
)

// stubAcquirer returns canned text per mode and records call counts.
type stubAcquirer struct {
	mu        sync.Mutex
	fastText  string
	fullText  string
	quality   float64
	fastCalls int
	fullCalls int
}

func (s *stubAcquirer) Acquire(_ context.Context, _ image.Image, _ string, mode AcquireMode) (string, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == AcquireFull {
		s.fullCalls++
		return s.fullText, s.quality
	}
	s.fastCalls++
	return s.fastText, s.quality
}

func testEngine(acq TextAcquirer) *Engine {
	return NewEngine(
		NewDetector(DetectorConfig{}),
		testClassifier(),
		NewAdjuster(AdjusterConfig{}),
		acq,
		nil,
		PipelineConfig{Workers: 2, MinTextChars: 30},
		nil,
	)
}

func TestProcessPageBlankPage(t *testing.T) {
	acq := &stubAcquirer{}
	e := testEngine(acq)
	page := cardPage(200, 300)

	result := e.ProcessPage(context.Background(), 0, page, "en")

	if len(result.Regions) != 1 {
		t.Fatalf("expected 1 full-page region, got %d", len(result.Regions))
	}
	cls := result.Regions[0].Classification
	if cls.Type != TypeUnknown || cls.Side != SideUnknown {
		t.Errorf("blank page should classify unknown, got %s/%s", cls.Type, cls.Side)
	}
	if cls.AdjustedConfidence != 0 {
		t.Errorf("blank page confidence = %.1f, want 0", cls.AdjustedConfidence)
	}
}

func TestProcessPageEscalatesShortFastResult(t *testing.T) {
	acq := &stubAcquirer{
		fastText: "id",
		fullText: "national identity card date of birth photo here",
		quality:  80,
	}
	e := testEngine(acq)
	page := cardPage(1000, 800, image.Rect(100, 100, 500, 350))

	result := e.ProcessPage(context.Background(), 0, page, "en")

	if acq.fullCalls != 1 {
		t.Errorf("expected exactly one full-mode escalation, got %d", acq.fullCalls)
	}
	cls := result.Regions[0].Classification
	if cls.Side != SideFront {
		t.Errorf("expected classification from full text, got side %s", cls.Side)
	}
}

func TestProcessPageNoEscalationOnLongFastResult(t *testing.T) {
	acq := &stubAcquirer{
		fastText: "national identity card date of birth photo",
		quality:  80,
	}
	e := testEngine(acq)
	page := cardPage(1000, 800, image.Rect(100, 100, 500, 350))

	e.ProcessPage(context.Background(), 0, page, "en")

	if acq.fullCalls != 0 {
		t.Errorf("fast result above the minimum must not escalate, got %d full calls", acq.fullCalls)
	}
}

func TestProcessPageEscalatesOnGarbageFastResult(t *testing.T) {
	// Long but worthless fast output: the cleaned text is what counts
	// against the escalation minimum.
	acq := &stubAcquirer{
		fastText: strings.Repeat("?", 40),
		fullText: "national identity card date of birth photo here",
		quality:  80,
	}
	stripNoise := func(s string) string {
		return strings.ReplaceAll(s, "?", "")
	}
	e := NewEngine(
		NewDetector(DetectorConfig{}),
		testClassifier(),
		NewAdjuster(AdjusterConfig{}),
		acq,
		stripNoise,
		PipelineConfig{Workers: 2, MinTextChars: 30},
		nil,
	)
	page := cardPage(1000, 800, image.Rect(100, 100, 500, 350))

	result := e.ProcessPage(context.Background(), 0, page, "en")

	if acq.fullCalls != 1 {
		t.Fatalf("garbage fast text must escalate once, got %d full calls", acq.fullCalls)
	}
	if cls := result.Regions[0].Classification; cls.Side != SideFront {
		t.Errorf("expected classification from full text, got side %s", cls.Side)
	}
}

func TestProcessPageKeepsFastWhenFullEmpty(t *testing.T) {
	acq := &stubAcquirer{fastText: "photo", fullText: "", quality: 80}
	e := testEngine(acq)
	page := cardPage(1000, 800, image.Rect(100, 100, 500, 350))

	result := e.ProcessPage(context.Background(), 0, page, "en")

	cls := result.Regions[0].Classification
	if cls.Method != MethodFrontKeywords {
		t.Errorf("failed escalation must keep the fast result, got method %s", cls.Method)
	}
}

func TestProcessPagePairsRegions(t *testing.T) {
	// Two cards, only one yields text: the silent one pairs to the back.
	var calls int
	var mu sync.Mutex
	acq := acquirerFunc(func(_ context.Context, _ image.Image, _ string, mode AcquireMode) (string, float64) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return strings.Repeat("national identity card date of birth ", 2), 90
		}
		return "", 0
	})
	e := testEngine(acq)
	page := cardPage(1000, 800,
		image.Rect(50, 100, 450, 350),
		image.Rect(550, 100, 950, 350))

	result := e.ProcessPage(context.Background(), 0, page, "en")

	if len(result.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(result.Regions))
	}

	var paired, direct int
	for _, r := range result.Regions {
		switch r.Classification.Method {
		case MethodPairing:
			paired++
			if r.Classification.AdjustedConfidence != 65 {
				t.Errorf("paired confidence = %.1f, want 65", r.Classification.AdjustedConfidence)
			}
			if r.Classification.Side != SideBack {
				t.Errorf("paired region should take the complementary side, got %s", r.Classification.Side)
			}
		case MethodFrontKeywords:
			direct++
		}
	}
	if paired != 1 || direct != 1 {
		t.Errorf("expected one direct and one paired region, got direct=%d paired=%d", direct, paired)
	}
}

// acquirerFunc adapts a function to the TextAcquirer interface.
type acquirerFunc func(ctx context.Context, img image.Image, lang string, mode AcquireMode) (string, float64)

func (f acquirerFunc) Acquire(ctx context.Context, img image.Image, lang string, mode AcquireMode) (string, float64) {
	return f(ctx, img, lang, mode)
}
