package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func trainDefault(t *testing.T) (*isolationForest, []float64) {
	t.Helper()

	model, samples, err := trainAnomalyModel(defaultConfig().Model)
	require.NoError(t, err)

	return model, samples
}

func TestTrainAnomalyModelDrawsConfiguredSamples(t *testing.T) {
	model, samples := trainDefault(t)

	assert.Len(t, samples, 200)
	assert.Len(t, model.trees, 100)
	assert.Equal(t, 200, model.subsample)
}

func TestTrainAnomalyModelIsReproducible(t *testing.T) {
	a, samplesA := trainDefault(t)
	b, samplesB := trainDefault(t)

	assert.Equal(t, samplesA, samplesB)
	assert.Equal(t, a.Threshold(), b.Threshold())
	for rate := 1; rate <= maxErrorRate; rate++ {
		assert.Equal(t, a.Predict(rate), b.Predict(rate), "error rate %d", rate)
	}
}

func TestIsolationForestFlagsTails(t *testing.T) {
	model, _ := trainDefault(t)

	assert.Equal(t, StatusAnomalyDetected, model.Predict(1))
	assert.Equal(t, StatusAnomalyDetected, model.Predict(100))
	assert.Equal(t, StatusNormal, model.Predict(50))
	assert.Greater(t, model.Score(1), model.Score(50))
	assert.Greater(t, model.Score(100), model.Score(50))
}

func TestIsolationForestContaminationShare(t *testing.T) {
	model, samples := trainDefault(t)

	flagged := 0
	for _, x := range samples {
		if model.Score(x) > model.Threshold() {
			flagged++
		}
	}

	assert.InDelta(t, 0.2, float64(flagged)/float64(len(samples)), 0.05)
}

func TestIsolationForestScoreRange(t *testing.T) {
	model, _ := trainDefault(t)

	for rate := 1; rate <= maxErrorRate; rate++ {
		s := model.Score(float64(rate))
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestFitIsolationForestRejectsBadInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := fitIsolationForest(nil, 10, 0.2, rng)
	assert.ErrorIs(t, err, errEmptyTrainingSet)

	_, err = fitIsolationForest([]float64{1, 2, 3}, 10, 0, rng)
	assert.ErrorIs(t, err, errBadContamination)

	_, err = fitIsolationForest([]float64{1, 2, 3}, 10, 0.6, rng)
	assert.ErrorIs(t, err, errBadContamination)

	_, err = fitIsolationForest([]float64{1, 2, 3}, 0, 0.2, rng)
	assert.ErrorIs(t, err, errNoTrees)
}

func TestFitIsolationForestConstantData(t *testing.T) {
	data := []float64{5, 5, 5, 5}

	model, err := fitIsolationForest(data, 10, 0.25, rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	assert.Equal(t, StatusNormal, model.Predict(5))
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.24, averagePathLength(256), 0.01)
}
