package tree

import (
	"math/rand"

	"github.com/hupe1980/vocabtree/descriptor"
	"github.com/hupe1980/vocabtree/distance"
)

// chooseCenters picks up to k distinct seed rows from candidates according
// to the configured strategy. It returns fewer than k indices only when the
// candidate set holds fewer than k unique points.
func chooseCenters[E descriptor.Element](init CentersInit, k int, candidates []int, data *descriptor.Matrix[E], dist distance.Func[E], rng *rand.Rand) []int {
	switch init {
	case CentersGonzales:
		return chooseCentersGonzales(k, candidates, data, dist, rng)
	case CentersKMeansPP:
		return chooseCentersKMeansPP(k, candidates, data, dist, rng)
	default:
		return chooseCentersRandom(k, candidates, data, dist, rng)
	}
}

// chooseCentersRandom samples distinct indices uniformly, skipping points
// identical to an already-chosen center.
func chooseCentersRandom[E descriptor.Element](k int, candidates []int, data *descriptor.Matrix[E], dist distance.Func[E], rng *rand.Rand) []int {
	perm := rng.Perm(len(candidates))

	centers := make([]int, 0, k)
	for _, p := range perm {
		idx := candidates[p]

		dup := false
		for _, c := range centers {
			if dist(data.Row(idx), data.Row(c)) == 0 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		centers = append(centers, idx)
		if len(centers) == k {
			break
		}
	}

	return centers
}

// chooseCentersGonzales picks the first center uniformly and every
// subsequent one maximizing the minimum distance to the chosen set
// (farthest-first traversal).
func chooseCentersGonzales[E descriptor.Element](k int, candidates []int, data *descriptor.Matrix[E], dist distance.Func[E], rng *rand.Rand) []int {
	if len(candidates) == 0 {
		return nil
	}

	centers := make([]int, 0, k)
	centers = append(centers, candidates[rng.Intn(len(candidates))])

	for len(centers) < k {
		best := -1
		bestDist := float32(-1)

		for _, idx := range candidates {
			minDist := dist(data.Row(idx), data.Row(centers[0]))
			for _, c := range centers[1:] {
				if d := dist(data.Row(idx), data.Row(c)); d < minDist {
					minDist = d
				}
			}
			if minDist > bestDist {
				bestDist = minDist
				best = idx
			}
		}

		if bestDist <= 0 {
			// Every remaining candidate coincides with a chosen center.
			break
		}
		centers = append(centers, best)
	}

	return centers
}

// chooseCentersKMeansPP picks the first center uniformly and subsequent
// ones weighted proportionally to the minimum squared distance to the
// chosen set.
func chooseCentersKMeansPP[E descriptor.Element](k int, candidates []int, data *descriptor.Matrix[E], dist distance.Func[E], rng *rand.Rand) []int {
	if len(candidates) == 0 {
		return nil
	}

	centers := make([]int, 0, k)
	centers = append(centers, candidates[rng.Intn(len(candidates))])

	minDist := make([]float64, len(candidates))
	var pot float64
	for i, idx := range candidates {
		d := float64(dist(data.Row(idx), data.Row(centers[0])))
		minDist[i] = d
		pot += d
	}

	for len(centers) < k {
		if pot == 0 {
			// No candidate is distinct from the chosen centers.
			break
		}

		target := rng.Float64() * pot
		chosen := -1
		var cumsum float64
		for i, d := range minDist {
			if d == 0 {
				continue
			}
			cumsum += d
			chosen = i
			if cumsum >= target {
				break
			}
		}
		if chosen < 0 {
			break
		}

		centers = append(centers, candidates[chosen])

		pot = 0
		for i, idx := range candidates {
			if d := float64(dist(data.Row(idx), data.Row(candidates[chosen]))); d < minDist[i] {
				minDist[i] = d
			}
			pot += minDist[i]
		}
	}

	return centers
}
