package stats

import "math"

// z975 is the standard normal quantile for a two-sided 95% interval.
const z975 = 1.959963984540054

// WilsonInterval returns the Wilson score interval for successes out of
// trials at confidence level z. A zero-trial input yields the vacuous (0, 1).
func WilsonInterval(successes, trials int, z float64) (lo, hi float64) {
	if trials == 0 {
		return 0, 1
	}

	n := float64(trials)
	p := float64(successes) / n
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	half := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom

	lo = math.Max(0, center-half)
	hi = math.Min(1, center+half)
	return lo, hi
}

// Wilson95 is WilsonInterval at the conventional 95% level.
func Wilson95(successes, trials int) (lo, hi float64) {
	return WilsonInterval(successes, trials, z975)
}
