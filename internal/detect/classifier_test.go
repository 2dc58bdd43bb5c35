package detect

import (
	"strings"
	"testing"
)

func testClassifier() *Classifier {
	return NewClassifier(ClassifierConfig{
		Languages: map[string]Keywords{
			"en": {
				Front: []string{"national identity card", "date of birth", "photo", "nationality"},
				Back:  []string{"issuing authority", "residence", "signature of holder"},
				Types: map[DocumentType][]string{
					"national_id": {"national identity card", "identity card"},
					"passport":    {"passport"},
				},
			},
		},
		TypePriority: []DocumentType{"national_id", "passport"},
		MRZMinRun:    5,
		MRZFullLine:  44,
	})
}

func TestClassifyMRZ(t *testing.T) {
	c := testClassifier()

	text := strings.Repeat("<", 36)
	result := c.Classify(text, "en")

	if result.Side != SideBack {
		t.Errorf("expected side back, got %s", result.Side)
	}
	if result.Method != MethodMRZ {
		t.Errorf("expected method mrz_pattern, got %s", result.Method)
	}
	if result.BaseConfidence < 85 {
		t.Errorf("expected confidence >= 85, got %.1f", result.BaseConfidence)
	}
}

func TestClassifyMRZFullLineCapsConfidence(t *testing.T) {
	c := testClassifier()

	short := c.Classify(strings.Repeat("<", 10), "en")
	full := c.Classify(strings.Repeat("<", 44), "en")
	over := c.Classify(strings.Repeat("<", 80), "en")

	if short.BaseConfidence >= full.BaseConfidence {
		t.Errorf("longer run should score higher: %.1f vs %.1f", short.BaseConfidence, full.BaseConfidence)
	}
	if full.BaseConfidence != 100 {
		t.Errorf("full line should score 100, got %.1f", full.BaseConfidence)
	}
	if over.BaseConfidence != full.BaseConfidence {
		t.Errorf("run beyond full line should not score above 100, got %.1f", over.BaseConfidence)
	}
}

func TestClassifyFrontKeywords(t *testing.T) {
	c := testClassifier()

	result := c.Classify("NATIONAL IDENTITY CARD DATE OF BIRTH PHOTO", "en")

	if result.Side != SideFront {
		t.Errorf("expected side front, got %s", result.Side)
	}
	if result.Method != MethodFrontKeywords {
		t.Errorf("expected method front_keywords, got %s", result.Method)
	}

	matched := result.MatchedKeywordSet()
	for _, want := range []string{"national identity card", "date of birth"} {
		if !matched[want] {
			t.Errorf("expected matched keyword %q, got %v", want, matched)
		}
	}
	if result.Type != "national_id" {
		t.Errorf("expected type national_id, got %s", result.Type)
	}
}

func TestClassifyBackOutranksFront(t *testing.T) {
	c := testClassifier()

	// Both back and front keywords present; back wins by rule order.
	result := c.Classify("issuing authority date of birth", "en")

	if result.Side != SideBack {
		t.Errorf("expected side back, got %s", result.Side)
	}
	if result.Method != MethodBackKeywords {
		t.Errorf("expected method back_keywords, got %s", result.Method)
	}
}

func TestClassifyMRZOutranksKeywords(t *testing.T) {
	c := testClassifier()

	result := c.Classify("date of birth <<<<<<<<<<", "en")

	if result.Method != MethodMRZ {
		t.Errorf("structural evidence should outrank keywords, got %s", result.Method)
	}
	if result.Side != SideBack {
		t.Errorf("expected side back, got %s", result.Side)
	}
}

func TestClassifyKeywordConfidence(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"single match", "photo", 68},
		{"two matches", "photo nationality", 76},
		{"no match", "completely unrelated text", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text, "en")
			if result.BaseConfidence != tt.want {
				t.Errorf("Classify(%q) confidence = %.1f, want %.1f", tt.text, result.BaseConfidence, tt.want)
			}
		})
	}
}

func TestClassifyEmptyText(t *testing.T) {
	c := testClassifier()

	for _, text := range []string{"", "   ", "\n\t"} {
		result := c.Classify(text, "en")
		if result.Method != MethodNone {
			t.Errorf("Classify(%q) method = %s, want none", text, result.Method)
		}
		if result.Side != SideUnknown || result.Type != TypeUnknown {
			t.Errorf("Classify(%q) should be unknown, got %s/%s", text, result.Type, result.Side)
		}
		if result.BaseConfidence != 0 {
			t.Errorf("Classify(%q) confidence = %.1f, want 0", text, result.BaseConfidence)
		}
	}
}

func TestClassifyShortDelimiterRunIgnored(t *testing.T) {
	c := testClassifier()

	result := c.Classify("a<<b<<c", "en")
	if result.Method == MethodMRZ {
		t.Error("runs below the minimum must not trigger MRZ")
	}
}

func TestClassifyTypeTieBreakByPriority(t *testing.T) {
	c := NewClassifier(ClassifierConfig{
		Languages: map[string]Keywords{
			"en": {
				Front: []string{"photo"},
				Back:  []string{"residence"},
				Types: map[DocumentType][]string{
					"alpha": {"permit"},
					"beta":  {"permit"},
				},
			},
		},
		TypePriority: []DocumentType{"beta", "alpha"},
	})

	result := c.Classify("photo permit", "en")
	if result.Type != "beta" {
		t.Errorf("tie should resolve by configured priority, got %s", result.Type)
	}
}

func TestClassifyTypeTieBreakStableWithoutPriority(t *testing.T) {
	// Equal match count and length for two types outside the priority list:
	// the winner must not depend on map iteration order.
	c := NewClassifier(ClassifierConfig{
		Languages: map[string]Keywords{
			"en": {
				Front: []string{"photo"},
				Back:  []string{"residence"},
				Types: map[DocumentType][]string{
					"gamma": {"pass"},
					"delta": {"visa"},
				},
			},
		},
	})

	for i := 0; i < 20; i++ {
		result := c.Classify("photo pass visa", "en")
		if result.Type != "delta" {
			t.Fatalf("run %d: full tie must resolve lexically to delta, got %s", i, result.Type)
		}
	}
}

func TestClassifyLanguageFallback(t *testing.T) {
	c := testClassifier()

	// Unknown language hint falls back to English lists.
	result := c.Classify("date of birth", "xx")
	if result.Method != MethodFrontKeywords {
		t.Errorf("expected fallback to english keywords, got %s", result.Method)
	}

	// Regional tag falls back to its base language.
	result = c.Classify("date of birth", "en-GB")
	if result.Method != MethodFrontKeywords {
		t.Errorf("expected en-GB to use en lists, got %s", result.Method)
	}
}
