package model

import "encoding/json"

// Prediction is the classification verdict: 0 or 1, or the sentinel "N/A"
// emitted when the model server could not be reached. It marshals as a bare
// number or the quoted string "N/A", matching the wire shape in spec.
type Prediction struct {
	NA    bool
	Value int
}

// PredictionZero, PredictionOne and PredictionNA are the three values a
// Prediction may hold.
var (
	PredictionZero = Prediction{Value: 0}
	PredictionOne  = Prediction{Value: 1}
	PredictionNA   = Prediction{NA: true}
)

// MarshalJSON renders the sentinel as "N/A" and otherwise as a bare integer.
func (p Prediction) MarshalJSON() ([]byte, error) {
	if p.NA {
		return json.Marshal("N/A")
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON accepts either a JSON integer or the string "N/A".
func (p *Prediction) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*p = Prediction{Value: asInt}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil && asString == "N/A" {
		*p = Prediction{NA: true}
		return nil
	}
	return &json.UnmarshalTypeError{Value: string(data), Type: nil}
}

// ClassificationEnvelope is the payload shape appended to the classification
// stream: the retrieved object, the model's verdict, and its score.
type ClassificationEnvelope struct {
	EventData  json.RawMessage `json:"event_data"`
	Prediction Prediction      `json:"prediction"`
	Score      float64         `json:"score"`
}

// IsSpam reports the notification-stage verdict: prediction==1.
func (e ClassificationEnvelope) IsSpam() bool {
	return !e.Prediction.NA && e.Prediction.Value == 1
}
