package normalize

import "time"

// durationMinutes prefers a positive supplied value and otherwise derives it from timestamps.
func durationMinutes(depart, arrive time.Time, supplied int) int {
	if supplied > 0 {
		return supplied
	}
	if depart.IsZero() || arrive.IsZero() {
		return 0
	}
	diff := int(arrive.Sub(depart).Minutes())
	if diff <= 0 {
		return 0
	}
	return diff
}
