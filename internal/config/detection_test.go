package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validBundle() *DetectionBundle {
	return &DetectionBundle{
		Languages:    []string{"en"},
		TypePriority: []string{"national_id", "passport"},
		Keywords: map[string]LanguageBundle{
			"en": {
				Front: []string{"identity card", "date of birth"},
				Back:  []string{"issuing authority"},
				Types: map[string][]string{
					"national_id": {"identity card"},
				},
			},
		},
	}
}

func TestBundleValidate(t *testing.T) {
	if err := validBundle().Validate(); err != nil {
		t.Fatalf("valid bundle rejected: %v", err)
	}
}

func TestBundleValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DetectionBundle)
	}{
		{"no languages", func(b *DetectionBundle) { b.Languages = nil }},
		{"missing language lists", func(b *DetectionBundle) { b.Languages = append(b.Languages, "fr") }},
		{"no front keywords", func(b *DetectionBundle) {
			kw := b.Keywords["en"]
			kw.Front = nil
			b.Keywords["en"] = kw
		}},
		{"no back keywords", func(b *DetectionBundle) {
			kw := b.Keywords["en"]
			kw.Back = nil
			b.Keywords["en"] = kw
		}},
		{"no types", func(b *DetectionBundle) {
			kw := b.Keywords["en"]
			kw.Types = nil
			b.Keywords["en"] = kw
		}},
		{"empty type list", func(b *DetectionBundle) {
			b.Keywords["en"].Types["passport"] = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(b)
			if err := b.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadDetectionBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detection.json")
	data := `{
		"languages": ["en"],
		"type_priority": ["national_id"],
		"keywords": {
			"en": {
				"front": ["identity card"],
				"back": ["issuing authority"],
				"types": {"national_id": ["identity card"]}
			}
		},
		"classifier": {"mrz_min_run": 7, "mrz_full_line": 44},
		"adjuster": {
			"shared_by_2_boost": 6,
			"specificity_2_word_bonus": 4,
			"consistency_3_bonus": 8,
			"low_quality_factor": 0.4,
			"low_ink_factor": 0.9
		},
		"pipeline": {"min_text_chars": 25, "pairing_confidence": 55}
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	bundle, err := LoadDetectionBundle(path)
	if err != nil {
		t.Fatalf("LoadDetectionBundle: %v", err)
	}

	cls := bundle.ClassifierConfig()
	if cls.MRZMinRun != 7 {
		t.Errorf("MRZMinRun = %d, want 7", cls.MRZMinRun)
	}
	if len(cls.Languages["en"].Front) != 1 {
		t.Errorf("front keywords not converted: %v", cls.Languages["en"])
	}
	if len(cls.TypePriority) != 1 || string(cls.TypePriority[0]) != "national_id" {
		t.Errorf("type priority not converted: %v", cls.TypePriority)
	}

	adj := bundle.AdjusterConfig()
	if adj.SharedBy2Boost != 6 || adj.Specificity2Bonus != 4 || adj.Consistency3Bonus != 8 {
		t.Errorf("adjuster boosts not converted: %+v", adj)
	}
	if adj.LowQualityFactor != 0.4 || adj.LowInkFactor != 0.9 {
		t.Errorf("adjuster dampening factors not converted: %+v", adj)
	}

	pipe := bundle.PipelineConfig(8)
	if pipe.Workers != 8 || pipe.MinTextChars != 25 || pipe.PairingConfidence != 55 {
		t.Errorf("pipeline config = %+v", pipe)
	}
}

func TestLoadDetectionBundleMissingFile(t *testing.T) {
	if _, err := LoadDetectionBundle(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDetectionBundleInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDetectionBundle(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadDetectionBundleInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incomplete.json")
	// Claims French but carries no French keyword lists.
	data := `{
		"languages": ["en", "fr"],
		"keywords": {
			"en": {
				"front": ["identity card"],
				"back": ["issuing authority"],
				"types": {"national_id": ["identity card"]}
			}
		}
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDetectionBundle(path); err == nil {
		t.Error("a claimed language without keyword lists must be fatal")
	}
}
