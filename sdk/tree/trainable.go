package tree

// Trainable is the per-infoset regret store consulted at action nodes.
// Strategy vectors are laid out [action*numHands + hand].
type Trainable interface {
	// CurrentStrategy is the policy played this iteration.
	CurrentStrategy() []float64
	// AverageStrategy is the reported (time-averaged) policy.
	AverageStrategy() []float64
	// UpdateRegrets folds one iteration's action regrets into the store.
	UpdateRegrets(regrets []float64, iter int, reachProbs []float64)
	// SetEvs stores per-action-hand EVs for reporting, skipping NaNs.
	SetEvs(evs []float64)
	// SetEquities stores per-action-hand equities for reporting, skipping NaNs.
	SetEquities(equities []float64)
	// CopyStrategyFrom deep-copies regret and cumulative-strategy state.
	CopyStrategyFrom(other Trainable)
	// Evs returns the last stored EVs (zero where never set).
	Evs() []float64
	// Equities returns the last stored equities.
	Equities() []float64
}
