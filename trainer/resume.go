package trainer

import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/model"

// Resume loads the parameter-only checkpoint of epoch into m and switches it to
// evaluation mode. Optimizer state is not restored.
func Resume(m model.Model, weightsPrefix string, epoch int) error {
	if err := model.LoadWeights(learning.WeightsPath(weightsPrefix, epoch), m); err != nil {
		return err
	}
	m.SetTraining(false)
	return nil
}
