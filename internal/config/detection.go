/**
 * Detection bundle loader
 *
 * The bundle is a JSON file holding the keyword dictionaries and tuning
 * thresholds for the detection engine. It is loaded and validated once at
 * startup into immutable structures; a missing keyword list for a claimed
 * language is fatal here, never at scan time.
 */

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cardsight/idscan-worker/internal/detect"
	scanerrors "github.com/cardsight/idscan-worker/internal/errors"
)

// DetectionBundle mirrors the JSON layout of the detection config file.
type DetectionBundle struct {
	Languages    []string                   `json:"languages"`
	TypePriority []string                   `json:"type_priority"`
	Keywords     map[string]LanguageBundle  `json:"keywords"`
	Detector     DetectorSettings           `json:"detector"`
	Classifier   ClassifierSettings         `json:"classifier"`
	Adjuster     AdjusterSettings           `json:"adjuster"`
	Pipeline     PipelineSettings           `json:"pipeline"`
}

// LanguageBundle holds the per-language keyword lists.
type LanguageBundle struct {
	Front []string            `json:"front"`
	Back  []string            `json:"back"`
	Types map[string][]string `json:"types"`
}

// DetectorSettings overrides region-detector geometry thresholds. Zero
// fields keep the engine defaults.
type DetectorSettings struct {
	MinAreaPercent float64 `json:"min_area_percent"`
	MaxAreaPercent float64 `json:"max_area_percent"`
	MinAspect      float64 `json:"min_aspect"`
	MaxAspect      float64 `json:"max_aspect"`
	PaddingPercent float64 `json:"padding_percent"`
	IoUThreshold   float64 `json:"iou_threshold"`
}

// ClassifierSettings overrides MRZ thresholds.
type ClassifierSettings struct {
	MRZMinRun   int `json:"mrz_min_run"`
	MRZFullLine int `json:"mrz_full_line"`
}

// AdjusterSettings overrides boost and dampening constants.
type AdjusterSettings struct {
	SharedBy2Boost    float64 `json:"shared_by_2_boost"`
	SharedBy3Boost    float64 `json:"shared_by_3_boost"`
	SharedBy4Boost    float64 `json:"shared_by_4_boost"`
	Specificity1Bonus float64 `json:"specificity_1_word_bonus"`
	Specificity2Bonus float64 `json:"specificity_2_word_bonus"`
	Specificity3Bonus float64 `json:"specificity_3_word_bonus"`
	SpecificityCap    float64 `json:"specificity_cap"`
	Consistency2Bonus float64 `json:"consistency_2_bonus"`
	Consistency3Bonus float64 `json:"consistency_3_bonus"`
	LowQualityFactor  float64 `json:"low_quality_factor"`
	MidQualityFactor  float64 `json:"mid_quality_factor"`
	LowQualityBelow   float64 `json:"low_quality_below"`
	MidQualityBelow   float64 `json:"mid_quality_below"`
	LowInkFactor      float64 `json:"low_ink_factor"`
	MinInkRatio       float64 `json:"min_ink_ratio"`
}

// PipelineSettings overrides escalation and pairing policy.
type PipelineSettings struct {
	MinTextChars      int     `json:"min_text_chars"`
	PairingConfidence float64 `json:"pairing_confidence"`
}

// LoadDetectionBundle reads and validates the bundle at path.
func LoadDetectionBundle(path string) (*DetectionBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scanerrors.NewBadDetectionConfigError(path, err)
	}

	var bundle DetectionBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, scanerrors.NewBadDetectionConfigError(path, err)
	}

	if err := bundle.Validate(); err != nil {
		return nil, scanerrors.NewBadDetectionConfigError(path, err)
	}

	return &bundle, nil
}

// Validate checks that every claimed language carries complete keyword
// lists. Run before the bundle reaches the engine.
func (b *DetectionBundle) Validate() error {
	if len(b.Languages) == 0 {
		return fmt.Errorf("no languages declared")
	}
	for _, lang := range b.Languages {
		kw, ok := b.Keywords[lang]
		if !ok {
			return fmt.Errorf("language %q declared but has no keyword lists", lang)
		}
		if len(kw.Front) == 0 {
			return fmt.Errorf("language %q has no front keywords", lang)
		}
		if len(kw.Back) == 0 {
			return fmt.Errorf("language %q has no back keywords", lang)
		}
		if len(kw.Types) == 0 {
			return fmt.Errorf("language %q has no document-type keywords", lang)
		}
		for docType, list := range kw.Types {
			if len(list) == 0 {
				return fmt.Errorf("language %q document type %q has an empty keyword list", lang, docType)
			}
		}
	}
	return nil
}

// DetectorConfig converts the bundle's detector section.
func (b *DetectionBundle) DetectorConfig() detect.DetectorConfig {
	return detect.DetectorConfig{
		MinAreaPercent: b.Detector.MinAreaPercent,
		MaxAreaPercent: b.Detector.MaxAreaPercent,
		MinAspect:      b.Detector.MinAspect,
		MaxAspect:      b.Detector.MaxAspect,
		PaddingPercent: b.Detector.PaddingPercent,
		IoUThreshold:   b.Detector.IoUThreshold,
	}
}

// ClassifierConfig converts the bundle's keyword tables and MRZ thresholds.
func (b *DetectionBundle) ClassifierConfig() detect.ClassifierConfig {
	languages := make(map[string]detect.Keywords, len(b.Keywords))
	for lang, kw := range b.Keywords {
		types := make(map[detect.DocumentType][]string, len(kw.Types))
		for docType, list := range kw.Types {
			types[detect.DocumentType(docType)] = list
		}
		languages[lang] = detect.Keywords{
			Front: kw.Front,
			Back:  kw.Back,
			Types: types,
		}
	}
	priority := make([]detect.DocumentType, len(b.TypePriority))
	for i, t := range b.TypePriority {
		priority[i] = detect.DocumentType(t)
	}
	return detect.ClassifierConfig{
		Languages:    languages,
		TypePriority: priority,
		MRZMinRun:    b.Classifier.MRZMinRun,
		MRZFullLine:  b.Classifier.MRZFullLine,
	}
}

// AdjusterConfig converts the bundle's adjuster section.
func (b *DetectionBundle) AdjusterConfig() detect.AdjusterConfig {
	return detect.AdjusterConfig{
		SharedBy2Boost:    b.Adjuster.SharedBy2Boost,
		SharedBy3Boost:    b.Adjuster.SharedBy3Boost,
		SharedBy4Boost:    b.Adjuster.SharedBy4Boost,
		Specificity1Bonus: b.Adjuster.Specificity1Bonus,
		Specificity2Bonus: b.Adjuster.Specificity2Bonus,
		Specificity3Bonus: b.Adjuster.Specificity3Bonus,
		SpecificityCap:    b.Adjuster.SpecificityCap,
		Consistency2Bonus: b.Adjuster.Consistency2Bonus,
		Consistency3Bonus: b.Adjuster.Consistency3Bonus,
		LowQualityFactor:  b.Adjuster.LowQualityFactor,
		MidQualityFactor:  b.Adjuster.MidQualityFactor,
		LowQualityBelow:   b.Adjuster.LowQualityBelow,
		MidQualityBelow:   b.Adjuster.MidQualityBelow,
		LowInkFactor:      b.Adjuster.LowInkFactor,
		MinInkRatio:       b.Adjuster.MinInkRatio,
	}
}

// PipelineConfig converts the bundle's pipeline section; worker count comes
// from the environment config, not the bundle.
func (b *DetectionBundle) PipelineConfig(workers int) detect.PipelineConfig {
	return detect.PipelineConfig{
		Workers:           workers,
		MinTextChars:      b.Pipeline.MinTextChars,
		PairingConfidence: b.Pipeline.PairingConfidence,
	}
}
