package messages

// SensorPayload is the flat JSON object published by the field sensor on the
// ingestion topic. Pointer fields distinguish "absent" from zero so that the
// ingestion handler can reject payloads missing required keys.
type SensorPayload struct {
	WaterTemp *float64 `json:"suhu_air"`
	AirTemp   *float64 `json:"suhu_udara"`
	Humidity  *float64 `json:"kelembapan"`
	TDS       *float64 `json:"tds"`
	PH        *float64 `json:"ph,omitempty"`
	Pump      *string  `json:"pompa,omitempty"`
}
