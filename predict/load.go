package predict

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Loads the scaler and classifier artifacts. Any failure wraps
// ErrModelUnavailable.
func Load(scalerPath string, classifierPath string) (*Service, error) {
	v := validator.New()

	scaler := &StandardScaler{}
	err := loadArtifact(v, scalerPath, scaler)
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %v", ErrModelUnavailable, err)
	}
	err = scaler.validate()
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %v", ErrModelUnavailable, err)
	}

	tree := &DecisionTree{}
	err = loadArtifact(v, classifierPath, tree)
	if err != nil {
		return nil, fmt.Errorf("%w: classifier: %v", ErrModelUnavailable, err)
	}
	err = tree.validate()
	if err != nil {
		return nil, fmt.Errorf("%w: classifier: %v", ErrModelUnavailable, err)
	}

	if tree.NFeatures != scaler.Width() {
		return nil, fmt.Errorf("%w: classifier expects %d features, scaler produces %d", ErrModelUnavailable, tree.NFeatures, scaler.Width())
	}

	return NewService(scaler, tree, scaler.FeatureNames), nil
}

func loadArtifact(v *validator.Validate, path string, artifact interface{}) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}

	err = json.Unmarshal(buf, artifact)
	if err != nil {
		return fmt.Errorf("unmarshalling %s: %w", path, err)
	}

	err = v.Struct(artifact)
	if err != nil {
		return fmt.Errorf("validating %s: %w", path, err)
	}

	return nil
}
