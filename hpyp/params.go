package hpyp

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NodeStatistics is one restaurant's contribution to hyperparameter
// resampling: total counts plus per-dish table sizes when the
// representation tracks them (nil otherwise).
type NodeStatistics struct {
	Customers  float64
	Tables     float64
	TableSizes [][]float64
}

// Parameters owns the per-depth discount and concentration values read by
// every restaurant operation. Values change only through Resample, called
// by the model between sweeps.
type Parameters interface {
	Discount(depth int) float64
	Concentration(depth int) float64
	// Resample updates (d, theta) at every depth from the statistics of
	// all restaurants at that depth.
	Resample(statsPerDepth [][]NodeStatistics) error
}

// SimpleParameters holds one (discount, concentration) pair per depth with
// Gamma/Beta priors, resampled with the auxiliary-variable scheme: per
// restaurant draw x ~ Beta(theta+1, c-1) and y_i ~ Bernoulli(theta/(theta +
// d*i)) for each table beyond the first, plus z_j ~ Bernoulli((j-1)/(j-d))
// per within-table customer when table sizes are available; then theta ~
// Gamma and d ~ Beta from the accumulated posterior parameters.
type SimpleParameters struct {
	maxDepth int
	discount []float64
	theta    []float64
	gammaA   float64
	gammaB   float64
	betaA    float64
	betaB    float64
}

// NewSimpleParameters validates initialD in [0,1) and initialTheta > -initialD.
// gammaA/gammaB are the Gamma prior on theta, betaA/betaB the Beta prior on d.
func NewSimpleParameters(maxDepth int, initialD, initialTheta, gammaA, gammaB, betaA, betaB float64) (*SimpleParameters, error) {
	if initialD < 0 || initialD >= 1 {
		return nil, configErrorf("discount must be in [0,1), got %v", initialD)
	}
	if initialTheta <= -initialD {
		return nil, configErrorf("concentration must exceed -discount, got theta=%v d=%v", initialTheta, initialD)
	}
	if gammaA <= 0 || gammaB <= 0 || betaA <= 0 || betaB <= 0 {
		return nil, configErrorf("prior parameters must be positive")
	}
	p := &SimpleParameters{
		maxDepth: maxDepth,
		discount: make([]float64, maxDepth+1),
		theta:    make([]float64, maxDepth+1),
		gammaA:   gammaA,
		gammaB:   gammaB,
		betaA:    betaA,
		betaB:    betaB,
	}
	for k := 0; k <= maxDepth; k++ {
		p.discount[k] = initialD
		p.theta[k] = initialTheta
	}
	return p, nil
}

func (p *SimpleParameters) Discount(depth int) float64 {
	if depth > p.maxDepth {
		depth = p.maxDepth
	}
	return p.discount[depth]
}

func (p *SimpleParameters) Concentration(depth int) float64 {
	if depth > p.maxDepth {
		depth = p.maxDepth
	}
	return p.theta[depth]
}

func (p *SimpleParameters) Resample(statsPerDepth [][]NodeStatistics) error {
	for depth := 0; depth <= p.maxDepth && depth < len(statsPerDepth); depth++ {
		aTheta := p.gammaA
		bTheta := p.gammaB
		aD := p.betaA
		bD := p.betaB
		thetaCur := p.theta[depth]
		dCur := p.discount[depth]

		seen := false
		for _, ns := range statsPerDepth[depth] {
			if ns.Tables < 2 {
				continue
			}
			seen = true
			x := distuv.Beta{Alpha: thetaCur + 1, Beta: ns.Customers - 1}.Rand()
			for i := 1; i < int(ns.Tables); i++ {
				y := distuv.Bernoulli{P: thetaCur / (thetaCur + dCur*float64(i))}.Rand()
				aTheta += y
				aD += 1 - y
			}
			bTheta -= math.Log(x)
			for _, sizes := range ns.TableSizes {
				for _, size := range sizes {
					for j := 1; j < int(size); j++ {
						z := distuv.Bernoulli{P: (float64(j) - 1) / (float64(j) - dCur)}.Rand()
						bD += 1 - z
					}
				}
			}
		}
		if !seen {
			continue
		}

		newTheta := distuv.Gamma{Alpha: aTheta, Beta: bTheta}.Rand()
		newD := distuv.Beta{Alpha: aD, Beta: bD}.Rand()
		if newD < 0 || newD >= 1 || newTheta <= -newD || math.IsNaN(newTheta) || math.IsNaN(newD) {
			// keep the previous values rather than propagate an invalid draw
			continue
		}
		p.theta[depth] = newTheta
		p.discount[depth] = newD
	}
	return nil
}
