package usecase

// Response-time bucket labels attached to outbound replies for
// downstream behavioral signaling.
const (
	Bucket0To2Min   = "0-2 minutes"
	Bucket2To5Min   = "2-5 minutes"
	Bucket5To10Min  = "5-10 minutes"
	Bucket10To20Min = "10-20 minutes"
	Bucket20To30Min = "20-30 minutes"
	Bucket30To60Min = "30-60 minutes"
	Bucket1To2Hr    = "1-2 hours"
	Bucket2To5Hr    = "2-5 hours"
)

// ClassifyResponseTime maps a response gap in seconds to a discrete
// bucket label. Thresholds are inclusive upper bounds; negative inputs
// (clock skew) are clamped to zero. Anything past two hours lands in
// the catch-all bucket, multi-day gaps included.
func ClassifyResponseTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds <= 120:
		return Bucket0To2Min
	case seconds <= 300:
		return Bucket2To5Min
	case seconds <= 600:
		return Bucket5To10Min
	case seconds <= 1200:
		return Bucket10To20Min
	case seconds <= 1800:
		return Bucket20To30Min
	case seconds <= 3600:
		return Bucket30To60Min
	case seconds <= 7200:
		return Bucket1To2Hr
	default:
		return Bucket2To5Hr
	}
}
