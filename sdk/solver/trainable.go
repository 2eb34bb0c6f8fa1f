package solver

import (
	"fmt"
	"math"

	"github.com/lox/postflop/sdk/tree"
)

// Algorithm selects the regret-matching variant used for a run.
type Algorithm string

const (
	AlgorithmDiscountedCfr Algorithm = "discounted_cfr"
	AlgorithmCfrPlus       Algorithm = "cfr_plus"
)

// TrainableFactory builds an empty trainable for an action node with the
// given shape.
type TrainableFactory func(numActions, numHands int) tree.Trainable

// NewTrainableFactory returns the factory for the chosen algorithm.
// WeightedAverage only affects the discounted variant.
func NewTrainableFactory(algorithm Algorithm, weightedAverage bool) (TrainableFactory, error) {
	switch algorithm {
	case AlgorithmDiscountedCfr:
		return func(numActions, numHands int) tree.Trainable {
			return NewDiscountedCfrTrainable(numActions, numHands, weightedAverage)
		}, nil
	case AlgorithmCfrPlus:
		return func(numActions, numHands int) tree.Trainable {
			return NewCfrPlusTrainable(numActions, numHands)
		}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
}

// Discounted CFR parameters.
const (
	dcfrAlpha = 1.5
	dcfrBeta  = 0.0
	dcfrGamma = 2.0
	dcfrTheta = 1.0
)

// DiscountedCfrTrainable implements Discounted CFR regret matching with
// alpha=1.5, beta=0, gamma=2, theta=1.
type DiscountedCfrTrainable struct {
	numActions int
	numHands   int

	rPlus    []float64 // positive-part cumulative regret, [action*numHands+hand]
	rPlusSum []float64 // per-hand row sum of max(0, rPlus)
	cumRPlus []float64 // cumulative strategy
	evs      []float64
	equities []float64

	// weightedAverage switches the cumulative-strategy update to the
	// canonical reach-weighted form.
	weightedAverage bool
}

// NewDiscountedCfrTrainable builds an empty store for numActions x numHands.
func NewDiscountedCfrTrainable(numActions, numHands int, weightedAverage bool) *DiscountedCfrTrainable {
	return &DiscountedCfrTrainable{
		numActions:      numActions,
		numHands:        numHands,
		rPlus:           make([]float64, numActions*numHands),
		rPlusSum:        make([]float64, numHands),
		cumRPlus:        make([]float64, numActions*numHands),
		evs:             make([]float64, numActions*numHands),
		equities:        make([]float64, numActions*numHands),
		weightedAverage: weightedAverage,
	}
}

func (t *DiscountedCfrTrainable) CurrentStrategy() []float64 {
	strategy := make([]float64, t.numActions*t.numHands)
	t.fillCurrentStrategy(strategy)
	return strategy
}

func (t *DiscountedCfrTrainable) fillCurrentStrategy(strategy []float64) {
	uniform := 1.0 / float64(t.numActions)
	for h := 0; h < t.numHands; h++ {
		sum := t.rPlusSum[h]
		for a := 0; a < t.numActions; a++ {
			i := a*t.numHands + h
			if sum > 0 {
				strategy[i] = math.Max(0, t.rPlus[i]) / sum
			} else {
				strategy[i] = uniform
			}
		}
	}
}

func (t *DiscountedCfrTrainable) AverageStrategy() []float64 {
	strategy := make([]float64, t.numActions*t.numHands)
	uniform := 1.0 / float64(t.numActions)
	for h := 0; h < t.numHands; h++ {
		var total float64
		for a := 0; a < t.numActions; a++ {
			total += t.cumRPlus[a*t.numHands+h]
		}
		for a := 0; a < t.numActions; a++ {
			i := a*t.numHands + h
			if total > 0 {
				strategy[i] = t.cumRPlus[i] / total
			} else {
				strategy[i] = uniform
			}
		}
	}
	return strategy
}

func (t *DiscountedCfrTrainable) UpdateRegrets(regrets []float64, iter int, reachProbs []float64) {
	if len(regrets) != t.numActions*t.numHands {
		panic(fmt.Sprintf("regret length %d does not match %dx%d", len(regrets), t.numActions, t.numHands))
	}

	iterPow := math.Pow(float64(iter), dcfrAlpha)
	alphaCoef := iterPow / (1 + iterPow)
	for h := 0; h < t.numHands; h++ {
		var sum float64
		for a := 0; a < t.numActions; a++ {
			i := a*t.numHands + h
			r := t.rPlus[i] + regrets[i]
			if r > 0 {
				r *= alphaCoef
			} else {
				r *= dcfrBeta
			}
			t.rPlus[i] = r
			if r > 0 {
				sum += r
			}
		}
		t.rPlusSum[h] = sum
	}

	strategy := make([]float64, t.numActions*t.numHands)
	t.fillCurrentStrategy(strategy)
	strategyCoef := math.Pow(float64(iter)/float64(iter+1), dcfrGamma)
	for h := 0; h < t.numHands; h++ {
		weight := 1.0
		if t.weightedAverage {
			weight = reachProbs[h]
		}
		for a := 0; a < t.numActions; a++ {
			i := a*t.numHands + h
			t.cumRPlus[i] = dcfrTheta*t.cumRPlus[i] + strategy[i]*strategyCoef*weight
		}
	}
}

func (t *DiscountedCfrTrainable) SetEvs(evs []float64) {
	storeSkippingNaN(t.evs, evs, "evs")
}

func (t *DiscountedCfrTrainable) SetEquities(equities []float64) {
	storeSkippingNaN(t.equities, equities, "equities")
}

func (t *DiscountedCfrTrainable) Evs() []float64      { return t.evs }
func (t *DiscountedCfrTrainable) Equities() []float64 { return t.equities }

func (t *DiscountedCfrTrainable) CopyStrategyFrom(other tree.Trainable) {
	src, ok := other.(*DiscountedCfrTrainable)
	if !ok {
		panic(fmt.Sprintf("cannot copy strategy from %T", other))
	}
	// Row sums are deliberately not copied; they are rebuilt by the next
	// UpdateRegrets on the destination slot.
	copy(t.rPlus, src.rPlus)
	copy(t.cumRPlus, src.cumRPlus)
}

// CfrPlusTrainable implements CFR+ regret matching with linear strategy
// weighting. Its reported strategy is the current one.
type CfrPlusTrainable struct {
	numActions int
	numHands   int

	rPlus    []float64
	rPlusSum []float64
	cumRPlus []float64
	evs      []float64
	equities []float64
}

// NewCfrPlusTrainable builds an empty store for numActions x numHands.
func NewCfrPlusTrainable(numActions, numHands int) *CfrPlusTrainable {
	return &CfrPlusTrainable{
		numActions: numActions,
		numHands:   numHands,
		rPlus:      make([]float64, numActions*numHands),
		rPlusSum:   make([]float64, numHands),
		cumRPlus:   make([]float64, numActions*numHands),
		evs:        make([]float64, numActions*numHands),
		equities:   make([]float64, numActions*numHands),
	}
}

func (t *CfrPlusTrainable) CurrentStrategy() []float64 {
	strategy := make([]float64, t.numActions*t.numHands)
	uniform := 1.0 / float64(t.numActions)
	for h := 0; h < t.numHands; h++ {
		sum := t.rPlusSum[h]
		for a := 0; a < t.numActions; a++ {
			i := a*t.numHands + h
			if sum != 0 {
				strategy[i] = t.rPlus[i] / sum
			} else {
				strategy[i] = uniform
			}
		}
	}
	return strategy
}

// AverageStrategy reports the current strategy. The linearly weighted
// cumulative strategy kept in cumRPlus is not read here.
func (t *CfrPlusTrainable) AverageStrategy() []float64 {
	return t.CurrentStrategy()
}

func (t *CfrPlusTrainable) UpdateRegrets(regrets []float64, iter int, reachProbs []float64) {
	if len(regrets) != t.numActions*t.numHands {
		panic(fmt.Sprintf("regret length %d does not match %dx%d", len(regrets), t.numActions, t.numHands))
	}
	for h := range t.rPlusSum {
		t.rPlusSum[h] = 0
	}
	for a := 0; a < t.numActions; a++ {
		for h := 0; h < t.numHands; h++ {
			i := a*t.numHands + h
			t.rPlus[i] = math.Max(0, t.rPlus[i]+regrets[i])
			t.rPlusSum[h] += t.rPlus[i]
			t.cumRPlus[i] += t.rPlus[i] * float64(iter)
		}
	}
}

func (t *CfrPlusTrainable) SetEvs(evs []float64) {
	storeSkippingNaN(t.evs, evs, "evs")
}

func (t *CfrPlusTrainable) SetEquities(equities []float64) {
	storeSkippingNaN(t.equities, equities, "equities")
}

func (t *CfrPlusTrainable) Evs() []float64      { return t.evs }
func (t *CfrPlusTrainable) Equities() []float64 { return t.equities }

func (t *CfrPlusTrainable) CopyStrategyFrom(other tree.Trainable) {
	src, ok := other.(*CfrPlusTrainable)
	if !ok {
		panic(fmt.Sprintf("cannot copy strategy from %T", other))
	}
	copy(t.rPlus, src.rPlus)
	copy(t.cumRPlus, src.cumRPlus)
}

// storeSkippingNaN copies src into dst entrywise, keeping the old value
// where src is NaN. NaN is detected by self-inequality.
func storeSkippingNaN(dst, src []float64, what string) {
	if len(dst) != len(src) {
		panic(fmt.Sprintf("size mismatch storing %s: %d != %d", what, len(src), len(dst)))
	}
	for i, v := range src {
		if v == v {
			dst[i] = v
		}
	}
}
