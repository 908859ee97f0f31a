package models

import "time"

const (
	LabelNotPotable = 0
	LabelPotable    = 1

	ResultSafe    = "Safe"
	ResultNotSafe = "Not Safe"
)

// ResultTextFor maps a potability label to its display text.
func ResultTextFor(label int) string {
	if label == LabelPotable {
		return ResultSafe
	}
	return ResultNotSafe
}

// WaterPrediction is one classified water sample. The measurement and
// prediction columns are written once at creation; only location, notes and
// updated_at may change afterwards.
type WaterPrediction struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	UserID          uint      `gorm:"column:user_id;index" json:"user_id"`
	PH              float64   `gorm:"column:ph" json:"ph"`
	Hardness        float64   `gorm:"column:hardness" json:"hardness"`
	Solids          float64   `gorm:"column:solids" json:"solids"`
	Chloramines     float64   `gorm:"column:chloramines" json:"chloramines"`
	Sulfate         float64   `gorm:"column:sulfate" json:"sulfate"`
	Conductivity    float64   `gorm:"column:conductivity" json:"conductivity"`
	OrganicCarbon   float64   `gorm:"column:organic_carbon" json:"organic_carbon"`
	Trihalomethanes float64   `gorm:"column:trihalomethanes" json:"trihalomethanes"`
	Turbidity       float64   `gorm:"column:turbidity" json:"turbidity"`
	PredictionLabel int       `gorm:"column:prediction_label" json:"prediction_label"`
	Probability     float64   `gorm:"column:probability" json:"probability"`
	Confidence      float64   `gorm:"column:confidence" json:"confidence"`
	ResultText      string    `gorm:"column:result_text" json:"result_text"`
	Location        string    `gorm:"column:location" json:"location,omitempty"`
	Notes           string    `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (WaterPrediction) TableName() string { return "water_predictions" }
