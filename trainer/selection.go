package trainer

import "math"

// Record holds the losses of one epoch
type Record struct {
	Epoch int
	Valid float64
	Test  float64
}

// Selection picks the epoch with the lowest validation loss. The test loss it
// reports is the one measured at that epoch.
type Selection struct {
	Epoch int
	Valid float64
	Test  float64

	History []Record
}

func NewSelection() *Selection {
	return &Selection{Valid: math.Inf(1), Test: math.NaN()}
}

// Observe records an epoch and reports whether it is the new best. A NaN validation
// loss, as reported by an empty pass, never wins.
func (s *Selection) Observe(epoch int, valid, test float64) bool {
	s.History = append(s.History, Record{epoch, valid, test})
	if !math.IsNaN(valid) && valid < s.Valid {
		s.Epoch, s.Valid, s.Test = epoch, valid, test
		return true
	}
	return false
}
