package stats

import "math"

// relTol absorbs floating-point noise when comparing probability masses, the
// same guard scipy's exact test applies.
const relTol = 1e-7

// BinomTestTwoSided is the exact two-sided binomial test: the probability,
// under Binomial(n, p), of an outcome at most as likely as the observed k.
// Every outcome whose mass does not exceed pmf(k) contributes.
func BinomTestTwoSided(k, n int, p float64) float64 {
	if n == 0 {
		return 1
	}

	observed := binomPMF(k, n, p)
	threshold := observed * (1 + relTol)

	total := 0.0
	for i := 0; i <= n; i++ {
		if m := binomPMF(i, n, p); m <= threshold {
			total += m
		}
	}
	return math.Min(1, total)
}

// binomPMF computes C(n,k) p^k (1-p)^(n-k) in log space to stay stable for
// large n.
func binomPMF(k, n int, p float64) float64 {
	if k < 0 || k > n {
		return 0
	}
	switch p {
	case 0:
		if k == 0 {
			return 1
		}
		return 0
	case 1:
		if k == n {
			return 1
		}
		return 0
	}

	logPMF := logChoose(n, k) + float64(k)*math.Log(p) + float64(n-k)*math.Log(1-p)
	return math.Exp(logPMF)
}

func logChoose(n, k int) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}
