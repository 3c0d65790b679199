package drive

import "math"

// MapBetweenRanges linearly maps v from [inMin, inMax] to [outMin, outMax].
// The division rounds towards negative infinity. Values outside the input range
// produce values outside the output range, callers must clamp themselves.
func MapBetweenRanges(v, inMin, inMax, outMin, outMax int) int {
	return floorDiv((v-inMin)*(outMax-outMin), inMax-inMin) + outMin
}

// MapBetweenRangesFloat is the float version of MapBetweenRanges, the quotient is floored as well.
func MapBetweenRangesFloat(v, inMin, inMax, outMin, outMax float64) float64 {
	return math.Floor((v-inMin)*(outMax-outMin)/(inMax-inMin)) + outMin
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Clamp bounds v to [min, max]
func Clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
