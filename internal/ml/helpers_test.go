package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	epochs      int
	losses      []float64
	durations   int
	accuracy    float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLTrainingEpochsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs++
}

func (m *MockMetrics) MLTrainingLossSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.losses = append(m.losses, v)
}

func (m *MockMetrics) MLTrainingDurationObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func (m *MockMetrics) MLAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy = v
}

// tetrahedron returns perClass jittered samples around four well separated
// points, one class per vertex, with one-hot labels.
func tetrahedron(perClass int) (rows, labels [][]float64) {
	vertices := [][]float64{
		{1, 1, 1},
		{1, -1, -1},
		{-1, 1, -1},
		{-1, -1, 1},
	}
	for c, v := range vertices {
		for i := 0; i < perClass; i++ {
			j := float64((i%5)-2) * 0.05
			rows = append(rows, []float64{v[0] + j, v[1] - j, v[2] + j*0.5})
			label := make([]float64, len(vertices))
			label[c] = 1
			labels = append(labels, label)
		}
	}
	return rows, labels
}
