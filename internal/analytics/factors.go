package analytics

import (
	"math"
	"sort"
)

// minRowsForRanking gates the ranker: below it the diagnostic is not
// shown at all rather than fit on too little data.
const minRowsForRanking = 14

type FactorImportance struct {
	Feature string  `json:"feature"`
	Score   float64 `json:"score"`
}

// FactorRanker trains a small gradient-boosted tree ensemble to rank
// which logged quantities best explain the next-day weight change. The
// target is the one-day-ahead delta, not the absolute weight, so the
// ranking reflects what drives change instead of being dominated by
// autocorrelation.
type FactorRanker struct {
	numTrees  int
	maxDepth  int
	shrinkage float64
}

func NewFactorRanker() *FactorRanker {
	return &FactorRanker{
		numTrees:  100,
		maxDepth:  2,
		shrinkage: 0.1,
	}
}

// Rank returns feature importances sorted descending, normalized to sum
// to 1, or nil when there is not enough data. Rows with any undefined
// feature or target are dropped, partial nutrition logging makes
// imputation misleading here.
func (r *FactorRanker) Rank(s *Series) []FactorImportance {
	n := s.Len()
	if n < 2 {
		return nil
	}

	caloriesLogged := 0
	for i := range s.Calories {
		if !math.IsNaN(s.Calories[i]) {
			caloriesLogged++
		}
	}
	if caloriesLogged < minRowsForRanking {
		return nil
	}

	calories7d := trailingMean(s.Calories, 7)

	featureNames := []string{"calories", "calories_7d_avg", "weight"}
	columns := [][]float64{s.Calories, calories7d, s.Weight}
	for _, macro := range []struct {
		name   string
		column []float64
	}{
		{"protein", s.ProteinG},
		{"fat", s.FatG},
		{"carbs", s.CarbsG},
	} {
		if hasDefined(macro.column) {
			featureNames = append(featureNames, macro.name)
			columns = append(columns, macro.column)
		}
	}

	var features [][]float64
	var target []float64
	for i := 0; i < n-1; i++ {
		delta := s.Weight[i+1] - s.Weight[i]
		if math.IsNaN(delta) {
			continue
		}
		row := make([]float64, len(columns))
		defined := true
		for j, column := range columns {
			if math.IsNaN(column[i]) {
				defined = false
				break
			}
			row[j] = column[i]
		}
		if !defined {
			continue
		}
		features = append(features, row)
		target = append(target, delta)
	}

	if len(features) < 2 {
		return nil
	}

	gains := r.boost(features, target, len(featureNames))

	var totalGain float64
	for _, g := range gains {
		totalGain += g
	}
	if totalGain == 0 {
		return nil
	}

	importances := make([]FactorImportance, len(featureNames))
	for i, name := range featureNames {
		importances[i] = FactorImportance{
			Feature: name,
			Score:   gains[i] / totalGain,
		}
	}
	sort.Slice(importances, func(i, j int) bool {
		return importances[i].Score > importances[j].Score
	})
	return importances
}

// boost runs gradient boosting with squared loss and returns the total
// squared-error reduction accumulated per feature across all splits.
func (r *FactorRanker) boost(features [][]float64, target []float64, numFeatures int) []float64 {
	n := len(target)
	gains := make([]float64, numFeatures)

	var base float64
	for _, y := range target {
		base += y
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}

	residuals := make([]float64, n)
	rows := make([]int, n)
	for t := 0; t < r.numTrees; t++ {
		for i := range target {
			residuals[i] = target[i] - pred[i]
			rows[i] = i
		}

		tree := r.buildTree(features, residuals, rows, 0, gains)

		for i := range pred {
			pred[i] += r.shrinkage * tree.predictRow(features[i])
		}
	}

	return gains
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
}

func (t *treeNode) predictRow(row []float64) float64 {
	if t.left == nil {
		return t.value
	}
	if row[t.feature] <= t.threshold {
		return t.left.predictRow(row)
	}
	return t.right.predictRow(row)
}

func (r *FactorRanker) buildTree(features [][]float64, residuals []float64, rows []int, depth int, gains []float64) *treeNode {
	var sum float64
	for _, i := range rows {
		sum += residuals[i]
	}
	leafValue := sum / float64(len(rows))

	if depth >= r.maxDepth || len(rows) < 2 {
		return &treeNode{value: leafValue}
	}

	feature, threshold, gain, ok := bestSplit(features, residuals, rows)
	if !ok {
		return &treeNode{value: leafValue}
	}
	gains[feature] += gain

	var leftRows, rightRows []int
	for _, i := range rows {
		if features[i][feature] <= threshold {
			leftRows = append(leftRows, i)
		} else {
			rightRows = append(rightRows, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      r.buildTree(features, residuals, leftRows, depth+1, gains),
		right:     r.buildTree(features, residuals, rightRows, depth+1, gains),
	}
}

// bestSplit scans every feature for the split that most reduces the
// squared error of the residuals in rows.
func bestSplit(features [][]float64, residuals []float64, rows []int) (feature int, threshold, gain float64, ok bool) {
	n := len(rows)
	numFeatures := len(features[rows[0]])

	var totalSum float64
	for _, i := range rows {
		totalSum += residuals[i]
	}
	parentScore := totalSum * totalSum / float64(n)

	sorted := make([]int, n)
	bestGain := 0.0
	for f := 0; f < numFeatures; f++ {
		copy(sorted, rows)
		sort.Slice(sorted, func(a, b int) bool {
			return features[sorted[a]][f] < features[sorted[b]][f]
		})

		var leftSum float64
		for pos := 0; pos < n-1; pos++ {
			leftSum += residuals[sorted[pos]]
			// only split between distinct feature values
			if features[sorted[pos]][f] == features[sorted[pos+1]][f] {
				continue
			}
			rightSum := totalSum - leftSum
			score := leftSum*leftSum/float64(pos+1) + rightSum*rightSum/float64(n-pos-1)
			if splitGain := score - parentScore; splitGain > bestGain {
				bestGain = splitGain
				feature = f
				threshold = features[sorted[pos]][f]
				ok = true
			}
		}
	}

	return feature, threshold, bestGain, ok
}

func hasDefined(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}
