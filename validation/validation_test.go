package validation

import (
	"errors"
	"math"
	"strings"
	"testing"

	"water-quality-api/apperrors"
	"water-quality-api/models"
)

func validRecord() *models.WaterPrediction {
	return &models.WaterPrediction{
		UserID:          1,
		PH:              7.0,
		Hardness:        200.0,
		Solids:          20000.0,
		Chloramines:     7.0,
		Sulfate:         300.0,
		Conductivity:    500.0,
		OrganicCarbon:   15.0,
		Trihalomethanes: 80.0,
		Turbidity:       4.0,
		PredictionLabel: models.LabelPotable,
		Probability:     0.82,
		Confidence:      0.91,
		ResultText:      models.ResultSafe,
	}
}

func fieldsOf(t *testing.T, err error) []apperrors.FieldError {
	t.Helper()
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	return verr.Fields
}

func hasField(fields []apperrors.FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

func TestValidRecordPasses(t *testing.T) {
	if err := ValidateRecord(validRecord()); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
}

func TestBoundaryValuesPass(t *testing.T) {
	rec := validRecord()
	rec.PH = 0
	rec.Turbidity = 0
	rec.Probability = 0
	rec.Confidence = 1
	rec.PredictionLabel = models.LabelNotPotable
	rec.ResultText = models.ResultNotSafe
	if err := ValidateRecord(rec); err != nil {
		t.Fatalf("boundary record rejected: %v", err)
	}

	rec = validRecord()
	rec.PH = 14
	if err := ValidateRecord(rec); err != nil {
		t.Fatalf("ph=14 rejected: %v", err)
	}
}

func TestSingleFieldViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.WaterPrediction)
		field  string
	}{
		{"ph above range", func(r *models.WaterPrediction) { r.PH = 14.5 }, "ph"},
		{"ph below range", func(r *models.WaterPrediction) { r.PH = -0.1 }, "ph"},
		{"ph NaN", func(r *models.WaterPrediction) { r.PH = math.NaN() }, "ph"},
		{"hardness negative", func(r *models.WaterPrediction) { r.Hardness = -1 }, "hardness"},
		{"solids negative", func(r *models.WaterPrediction) { r.Solids = -1 }, "solids"},
		{"chloramines NaN", func(r *models.WaterPrediction) { r.Chloramines = math.NaN() }, "chloramines"},
		{"sulfate negative", func(r *models.WaterPrediction) { r.Sulfate = -3 }, "sulfate"},
		{"conductivity infinite", func(r *models.WaterPrediction) { r.Conductivity = math.Inf(1) }, "conductivity"},
		{"organic carbon negative", func(r *models.WaterPrediction) { r.OrganicCarbon = -0.5 }, "organic_carbon"},
		{"trihalomethanes negative", func(r *models.WaterPrediction) { r.Trihalomethanes = -2 }, "trihalomethanes"},
		{"turbidity negative", func(r *models.WaterPrediction) { r.Turbidity = -1 }, "turbidity"},
		{"label out of set", func(r *models.WaterPrediction) { r.PredictionLabel = 2 }, "prediction_label"},
		{"probability above 1", func(r *models.WaterPrediction) { r.Probability = 1.2 }, "probability"},
		{"confidence negative", func(r *models.WaterPrediction) { r.Confidence = -0.1 }, "confidence"},
		{"unknown result text", func(r *models.WaterPrediction) { r.ResultText = "Maybe" }, "result_text"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(rec)
			fields := fieldsOf(t, ValidateRecord(rec))
			if !hasField(fields, tc.field) {
				t.Errorf("expected a violation on %q, got %v", tc.field, fields)
			}
		})
	}
}

func TestAllViolationsCollected(t *testing.T) {
	rec := validRecord()
	rec.PH = 20
	rec.Hardness = -1
	rec.Sulfate = -1
	rec.Turbidity = math.NaN()
	rec.Probability = 2

	fields := fieldsOf(t, ValidateRecord(rec))
	if len(fields) < 5 {
		t.Fatalf("expected at least 5 collected violations, got %d: %v", len(fields), fields)
	}
	for _, name := range []string{"ph", "hardness", "sulfate", "turbidity", "probability"} {
		if !hasField(fields, name) {
			t.Errorf("missing violation for %q", name)
		}
	}
}

func TestResultTextMustAgreeWithLabel(t *testing.T) {
	rec := validRecord()
	rec.PredictionLabel = models.LabelNotPotable
	rec.ResultText = models.ResultSafe
	fields := fieldsOf(t, ValidateRecord(rec))
	if !hasField(fields, "result_text") {
		t.Errorf(`label=0 with "Safe" should be rejected, got %v`, fields)
	}

	rec = validRecord()
	rec.PredictionLabel = models.LabelPotable
	rec.ResultText = models.ResultNotSafe
	fields = fieldsOf(t, ValidateRecord(rec))
	if !hasField(fields, "result_text") {
		t.Errorf(`label=1 with "Not Safe" should be rejected, got %v`, fields)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	rec := validRecord()
	rec.PH = 15
	err := ValidateRecord(rec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ph") {
		t.Errorf("error text should name the field: %q", err.Error())
	}
}
