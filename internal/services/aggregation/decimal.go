package aggregation

import (
	"math"
	"strconv"
)

// Decimal2 is a float rounded to two places that always serialises with
// exactly two decimals, e.g. 6.50. NaN and infinities serialise as null.
type Decimal2 float64

func round2(v float64) Decimal2 {
	return Decimal2(math.Round(v*100) / 100)
}

func (d Decimal2) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(d), 'f', 2, 64)), nil
}

func (d *Decimal2) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*d = Decimal2(v)
	return nil
}

func (d Decimal2) String() string {
	return strconv.FormatFloat(float64(d), 'f', 2, 64)
}
