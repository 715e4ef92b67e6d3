package predict

import (
	"fmt"
)

const leafNode = -1

// Decision tree classifier in the array layout of a fitted tree_.
// Node 0 is the root. Leaves have both children set to -1.
type DecisionTree struct {
	Classes       []string    `json:"classes" validate:"required,min=1,dive,required"`
	NFeatures     int         `json:"n_features_in" validate:"required,min=1"`
	ChildrenLeft  []int       `json:"children_left" validate:"required,min=1"`
	ChildrenRight []int       `json:"children_right" validate:"required,min=1"`
	Feature       []int       `json:"feature" validate:"required,min=1"`
	Threshold     []float64   `json:"threshold" validate:"required,min=1"`
	Value         [][]float64 `json:"value" validate:"required,min=1"`
}

func (t *DecisionTree) validate() error {
	n := len(t.ChildrenLeft)
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}

	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]

		if left == leafNode || right == leafNode {
			if left != right {
				return fmt.Errorf("node %d has a single child", node)
			}
			if len(t.Value[node]) != len(t.Classes) {
				return fmt.Errorf("leaf %d has %d class weights, expected %d", node, len(t.Value[node]), len(t.Classes))
			}
			continue
		}

		// Children always come after their parent, which also
		// rules out cycles.
		if left <= node || left >= n || right <= node || right >= n {
			return fmt.Errorf("node %d has out of range children %d, %d", node, left, right)
		}
		if t.Feature[node] < 0 || t.Feature[node] >= t.NFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", node, t.Feature[node], t.NFeatures)
		}
	}

	return nil
}

func (t *DecisionTree) Predict(x [][]float64) ([]string, error) {
	labels := make([]string, len(x))

	for i, row := range x {
		if len(row) != t.NFeatures {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrFeatureShapeMismatch, i, len(row), t.NFeatures)
		}
		labels[i] = t.Classes[argmax(t.Value[t.leaf(row)])]
	}

	return labels, nil
}

func (t *DecisionTree) leaf(row []float64) int {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		// Inputs are compared at float32 precision, as the tree
		// was fitted.
		if float64(float32(row[t.Feature[node]])) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

// First index wins on ties.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
