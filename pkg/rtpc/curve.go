package rtpc

import "math"

// Curve selects the shaping function applied to a raw control value before
// it reaches a target. Every curve is a monotonic map from [0,1] to [0,1].
type Curve uint8

const (
	// CurveLinear passes the value through unchanged.
	CurveLinear Curve = iota
	// CurveLogarithmic rises steeply near zero.
	CurveLogarithmic
	// CurveExponential rises steeply near one.
	CurveExponential
	// CurveSquared is x².
	CurveSquared
	// CurveSqrt is √x.
	CurveSqrt
)

// String returns the curve name.
func (c Curve) String() string {
	switch c {
	case CurveLinear:
		return "linear"
	case CurveLogarithmic:
		return "logarithmic"
	case CurveExponential:
		return "exponential"
	case CurveSquared:
		return "squared"
	case CurveSqrt:
		return "sqrt"
	default:
		return "unknown"
	}
}

// Shape evaluates the curve at x. Inputs are clamped to [0,1] first, so the
// result is always in [0,1] regardless of what the control source sends.
func Shape(c Curve, x float64) float64 {
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	switch c {
	case CurveLogarithmic:
		// log2(1+x) keeps the endpoints fixed at 0 and 1.
		return math.Log2(1 + x)
	case CurveExponential:
		// (2^x - 1) is the inverse shape, endpoints fixed.
		return math.Exp2(x) - 1
	case CurveSquared:
		return x * x
	case CurveSqrt:
		return math.Sqrt(x)
	default:
		return x
	}
}
