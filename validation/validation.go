package validation

import (
	"math"

	"water-quality-api/apperrors"
	"water-quality-api/models"
)

// ValidateRecord checks a merged prediction record before it is persisted.
// All violations are collected; the caller gets the full report, not just the
// first failure.
func ValidateRecord(p *models.WaterPrediction) error {
	var fields []apperrors.FieldError
	add := func(name, msg string) {
		fields = append(fields, apperrors.FieldError{Field: name, Message: msg})
	}

	if !isFinite(p.PH) {
		add("ph", "must be a finite number")
	} else if p.PH < 0 || p.PH > 14 {
		add("ph", "must be between 0 and 14")
	}

	measurements := []struct {
		name  string
		value float64
	}{
		{"hardness", p.Hardness},
		{"solids", p.Solids},
		{"chloramines", p.Chloramines},
		{"sulfate", p.Sulfate},
		{"conductivity", p.Conductivity},
		{"organic_carbon", p.OrganicCarbon},
		{"trihalomethanes", p.Trihalomethanes},
		{"turbidity", p.Turbidity},
	}
	for _, m := range measurements {
		if !isFinite(m.value) {
			add(m.name, "must be a finite number")
		} else if m.value < 0 {
			add(m.name, "must be non-negative")
		}
	}

	if p.PredictionLabel != models.LabelNotPotable && p.PredictionLabel != models.LabelPotable {
		add("prediction_label", "must be 0 or 1")
	}
	if !isFinite(p.Probability) || p.Probability < 0 || p.Probability > 1 {
		add("probability", "must be between 0 and 1")
	}
	if !isFinite(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		add("confidence", "must be between 0 and 1")
	}

	switch p.ResultText {
	case models.ResultSafe:
		if p.PredictionLabel != models.LabelPotable {
			add("result_text", `"Safe" requires prediction_label 1`)
		}
	case models.ResultNotSafe:
		if p.PredictionLabel != models.LabelNotPotable {
			add("result_text", `"Not Safe" requires prediction_label 0`)
		}
	default:
		add("result_text", `must be "Safe" or "Not Safe"`)
	}

	if len(fields) > 0 {
		return &apperrors.ValidationError{Fields: fields}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
