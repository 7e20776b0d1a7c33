// Package units provides shared conversions between the measurement units
// used across the pipeline: angles in degrees or radians, forces in newtons
// or normalized body weights.
package units

import "math"

// DegPerRad converts radians to degrees when multiplied.
const DegPerRad = 180 / math.Pi

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg / DegPerRad
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * DegPerRad
}

// BodyWeightN returns the subject's weight in newtons.
func BodyWeightN(massKg, gravityMps2 float64) float64 {
	return massKg * gravityMps2
}

// ToBodyWeights normalizes a force in newtons by the subject's body weight.
// A non-positive body weight yields zero rather than an infinity.
func ToBodyWeights(forceN, bodyWeightN float64) float64 {
	if bodyWeightN <= 0 {
		return 0
	}
	return forceN / bodyWeightN
}
