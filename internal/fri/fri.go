// Package fri derives FRI folding schedules for the Stone prover.
//
// The prover's parameter file carries a fri_step_list controlling how many
// bits each FRI folding round consumes. The schedule depends on the trace
// length (n_steps from the AIR public input) and the configured
// last_layer_degree_bound, so it has to be recomputed for every run.
package fri

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidInput marks step-list inputs outside the valid domain.
var ErrInvalidInput = errors.New("fri: invalid input")

// foldingBits is how many bits a single full FRI folding round consumes.
const foldingBits = 4

// StepList computes the FRI folding schedule for a trace of nSteps steps
// and the given last layer degree bound.
//
// With stepsLog = ceil(log2(nSteps)) and boundLog = ceil(log2(bound)), the
// total number of bits to fold is stepsLog + 4 - boundLog. The schedule is a
// leading 0 followed by as many 4s as fit, then the remainder if any:
//
//	nSteps=1024, bound=4 -> total=12 -> [0, 4, 4, 4]
//	nSteps=100,  bound=2 -> total=10 -> [0, 4, 4, 2]
//	nSteps=16,   bound=64 -> total=2 -> [0, 2]
//
// Both inputs must be positive. A bound large enough to make the total
// negative is rejected: there is no meaningful schedule that folds a
// negative number of bits.
func StepList(nSteps, lastLayerDegreeBound int) ([]int, error) {
	if nSteps <= 0 {
		return nil, fmt.Errorf("%w: n_steps must be positive, got %d", ErrInvalidInput, nSteps)
	}
	if lastLayerDegreeBound <= 0 {
		return nil, fmt.Errorf("%w: last_layer_degree_bound must be positive, got %d", ErrInvalidInput, lastLayerDegreeBound)
	}

	total := ceilLog2(nSteps) + foldingBits - ceilLog2(lastLayerDegreeBound)
	if total < 0 {
		return nil, fmt.Errorf("%w: last_layer_degree_bound %d too large for n_steps %d",
			ErrInvalidInput, lastLayerDegreeBound, nSteps)
	}

	q, r := floorDivMod(total, foldingBits)
	steps := make([]int, 0, q+2)
	steps = append(steps, 0)
	for i := 0; i < q; i++ {
		steps = append(steps, foldingBits)
	}
	if r > 0 {
		steps = append(steps, r)
	}
	return steps, nil
}

// ceilLog2 returns ceil(log2(n)) for n > 0 using integer bit arithmetic,
// avoiding float rounding at powers of two.
func ceilLog2(n int) int {
	return bits.Len(uint(n - 1))
}

// floorDivMod is floor division: the quotient rounds toward negative
// infinity and the remainder takes the divisor's sign. Go's native / and %
// truncate toward zero, which disagrees for negative dividends.
func floorDivMod(a, b int) (int, int) {
	q := a / b
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		q--
		r += b
	}
	return q, r
}
