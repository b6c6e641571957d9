// Package trainer provides high-level training orchestration for the piano-roll models.
// It runs the epoch loop over the train, validation and test splits, schedules the
// learning rate, checkpoints every epoch and reports metrics.
package trainer
