package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"vibration-diag/internal/common"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// ErrDiverged is returned when training produces a non-finite error.
var ErrDiverged = errors.New("training diverged")

// Default training hyper-parameters.
const (
	DefaultEpochs       = 1000
	DefaultLearningRate = 0.01
)

// Config controls Train and Fit.
type Config struct {
	Epochs       int
	LearningRate float64
	LogEvery     int        // epochs between debug log lines, 0 disables
	Rand         *rand.Rand // weight initialisation source, time seeded when nil
}

// DefaultConfig returns the fixed training budget used by the pipeline.
func DefaultConfig() Config {
	return Config{Epochs: DefaultEpochs, LearningRate: DefaultLearningRate}
}

// Network is a two-layer feed-forward network with tanh activations on both
// layers. The hidden layer is as wide as the input.
//
//	h = tanh(W1ᵀx + b1)
//	y = tanh(W2ᵀh + b2)
//
// W1 is inputs×hidden and W2 is hidden×outputs.
type Network struct {
	mu      sync.RWMutex
	w1      *mat.Dense
	b1      *mat.VecDense
	w2      *mat.Dense
	b2      *mat.VecDense
	metrics MetricsInterface
}

// Params is a plain copy of the network parameters.
type Params struct {
	W1 [][]float64 `json:"w1"`
	B1 []float64   `json:"b1"`
	W2 [][]float64 `json:"w2"`
	B2 []float64   `json:"b2"`
}

// NewNetwork creates a network for the given input and output widths with
// every weight and bias drawn uniformly from [0,1).
func NewNetwork(inputs, outputs int, rng *rand.Rand) (*Network, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("network: %w: widths %d×%d", common.ErrInvalidArgument, inputs, outputs)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	hidden := inputs

	uniform := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = rng.Float64()
		}
		return data
	}

	return &Network{
		w1: mat.NewDense(inputs, hidden, uniform(inputs*hidden)),
		b1: mat.NewVecDense(hidden, uniform(hidden)),
		w2: mat.NewDense(hidden, outputs, uniform(hidden*outputs)),
		b2: mat.NewVecDense(outputs, uniform(outputs)),
	}, nil
}

// NewNetworkFromParams builds a network from explicit parameters.
func NewNetworkFromParams(p Params) (*Network, error) {
	inputs := len(p.W1)
	if inputs == 0 {
		return nil, fmt.Errorf("network: %w: empty W1", common.ErrShapeMismatch)
	}
	hidden := len(p.W1[0])
	if hidden != inputs {
		return nil, fmt.Errorf("network: %w: hidden width %d must equal input width %d", common.ErrShapeMismatch, hidden, inputs)
	}
	if len(p.B1) != hidden || len(p.W2) != hidden {
		return nil, fmt.Errorf("network: %w: b1/W2 must have %d rows", common.ErrShapeMismatch, hidden)
	}
	outputs := len(p.B2)
	if outputs == 0 {
		return nil, fmt.Errorf("network: %w: empty b2", common.ErrShapeMismatch)
	}

	w1, err := denseFromRows(p.W1, hidden)
	if err != nil {
		return nil, fmt.Errorf("network: W1: %w", err)
	}
	w2, err := denseFromRows(p.W2, outputs)
	if err != nil {
		return nil, fmt.Errorf("network: W2: %w", err)
	}

	return &Network{
		w1: w1,
		b1: mat.NewVecDense(hidden, append([]float64(nil), p.B1...)),
		w2: w2,
		b2: mat.NewVecDense(outputs, append([]float64(nil), p.B2...)),
	}, nil
}

// SetMetrics attaches a metrics sink used by Fit and Predict.
func (n *Network) SetMetrics(m MetricsInterface) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metrics = m
}

// Inputs returns the input width.
func (n *Network) Inputs() int {
	r, _ := n.w1.Dims()
	return r
}

// Outputs returns the output width (number of classes).
func (n *Network) Outputs() int {
	return n.b2.Len()
}

// Params returns a copy of the current parameters.
func (n *Network) Params() Params {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Params{
		W1: rowsFromDense(n.w1),
		B1: append([]float64(nil), n.b1.RawVector().Data...),
		W2: rowsFromDense(n.w2),
		B2: append([]float64(nil), n.b2.RawVector().Data...),
	}
}

// Predict runs the forward pass and returns the raw tanh-activated output
// vector, one component per class.
func (n *Network) Predict(x []float64) ([]float64, error) {
	if n == nil {
		return nil, fmt.Errorf("predict: %w: nil network", common.ErrInvalidArgument)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	if err := n.checkInput(x); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	_, y := n.forward(mat.NewVecDense(len(x), append([]float64(nil), x...)))
	if n.metrics != nil {
		n.metrics.MLPredictionsInc()
	}
	return append([]float64(nil), y.RawVector().Data...), nil
}

// Train sizes a new network from the first sample and label, then fits it.
func Train(inputs, labels [][]float64, cfg Config, metrics MetricsInterface) (*Network, error) {
	if len(inputs) == 0 || len(labels) == 0 {
		return nil, fmt.Errorf("train: %w: no training samples", common.ErrEmptyDataset)
	}
	net, err := NewNetwork(len(inputs[0]), len(labels[0]), cfg.Rand)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	net.metrics = metrics
	if err := net.Fit(inputs, labels, cfg); err != nil {
		return nil, err
	}
	return net, nil
}

// Fit runs per-sample gradient descent for cfg.Epochs passes over the
// samples, in order. When an epoch ends with a non-finite loss the
// parameters are rolled back to their values before Fit and ErrDiverged is
// returned.
func (n *Network) Fit(inputs, labels [][]float64, cfg Config) error {
	if len(inputs) == 0 || len(labels) == 0 {
		return fmt.Errorf("train: %w: no training samples", common.ErrEmptyDataset)
	}
	if len(inputs) != len(labels) {
		return fmt.Errorf("train: %w: %d samples but %d labels", common.ErrShapeMismatch, len(inputs), len(labels))
	}
	if cfg.Epochs < 0 || math.IsNaN(cfg.LearningRate) || cfg.LearningRate <= 0 {
		return fmt.Errorf("train: %w: epochs %d, learning rate %v", common.ErrInvalidArgument, cfg.Epochs, cfg.LearningRate)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	xs := make([]*mat.VecDense, len(inputs))
	ts := make([]*mat.VecDense, len(labels))
	for i := range inputs {
		if err := n.checkInput(inputs[i]); err != nil {
			return fmt.Errorf("train: sample %d: %w", i, err)
		}
		if len(labels[i]) != n.Outputs() {
			return fmt.Errorf("train: label %d: %w: width %d, want %d", i, common.ErrShapeMismatch, len(labels[i]), n.Outputs())
		}
		xs[i] = mat.NewVecDense(len(inputs[i]), append([]float64(nil), inputs[i]...))
		ts[i] = mat.NewVecDense(len(labels[i]), append([]float64(nil), labels[i]...))
	}

	saved := n.snapshot()
	start := time.Now()
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		var sse float64
		for i := range xs {
			sse += n.step(xs[i], ts[i], cfg.LearningRate)
		}
		loss := sse / float64(len(xs))
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			n.restore(saved)
			return fmt.Errorf("train: %w at epoch %d", ErrDiverged, epoch)
		}

		if n.metrics != nil {
			n.metrics.MLTrainingEpochsInc()
			n.metrics.MLTrainingLossSet(loss)
		}
		if cfg.LogEvery > 0 && (epoch+1)%cfg.LogEvery == 0 {
			log.Debug().Int("epoch", epoch+1).Float64("loss", loss).Msg("Training progress")
		}
	}
	if n.metrics != nil {
		n.metrics.MLTrainingDurationObserve(time.Since(start).Seconds())
	}
	return nil
}

type paramSet struct {
	w1, w2 *mat.Dense
	b1, b2 *mat.VecDense
}

func (n *Network) snapshot() paramSet {
	p := paramSet{
		w1: mat.DenseCopyOf(n.w1),
		w2: mat.DenseCopyOf(n.w2),
		b1: mat.NewVecDense(n.b1.Len(), nil),
		b2: mat.NewVecDense(n.b2.Len(), nil),
	}
	p.b1.CloneFromVec(n.b1)
	p.b2.CloneFromVec(n.b2)
	return p
}

func (n *Network) restore(p paramSet) {
	n.w1.Copy(p.w1)
	n.w2.Copy(p.w2)
	n.b1.CopyVec(p.b1)
	n.b2.CopyVec(p.b2)
}

// step applies one gradient-descent update and returns the squared error
// measured before the update.
func (n *Network) step(x, target *mat.VecDense, lr float64) float64 {
	h, y := n.forward(x)

	outputs := y.Len()
	d2 := mat.NewVecDense(outputs, nil)
	var sse float64
	for k := 0; k < outputs; k++ {
		yk := y.AtVec(k)
		e := target.AtVec(k) - yk
		sse += e * e
		d2.SetVec(k, e*(1-yk*yk))
	}

	hidden := h.Len()
	d1 := mat.NewVecDense(hidden, nil)
	d1.MulVec(n.w2, d2)
	for j := 0; j < hidden; j++ {
		hj := h.AtVec(j)
		d1.SetVec(j, d1.AtVec(j)*(1-hj*hj))
	}

	n.w2.RankOne(n.w2, lr, h, d2)
	n.b2.AddScaledVec(n.b2, lr, d2)
	n.w1.RankOne(n.w1, lr, x, d1)
	n.b1.AddScaledVec(n.b1, lr, d1)

	return sse
}

func (n *Network) forward(x *mat.VecDense) (h, y *mat.VecDense) {
	h = mat.NewVecDense(n.b1.Len(), nil)
	h.MulVec(n.w1.T(), x)
	h.AddVec(h, n.b1)
	tanh(h)

	y = mat.NewVecDense(n.b2.Len(), nil)
	y.MulVec(n.w2.T(), h)
	y.AddVec(y, n.b2)
	tanh(y)
	return h, y
}

func (n *Network) checkInput(x []float64) error {
	if len(x) != n.Inputs() {
		return fmt.Errorf("%w: input width %d, want %d", common.ErrShapeMismatch, len(x), n.Inputs())
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: input %d is not finite", common.ErrInvalidArgument, i)
		}
	}
	return nil
}

func tanh(v *mat.VecDense) {
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, math.Tanh(v.AtVec(i)))
	}
}

func denseFromRows(rows [][]float64, cols int) (*mat.Dense, error) {
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", common.ErrShapeMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func rowsFromDense(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		mat.Row(rows[i], i, m)
	}
	return rows
}
