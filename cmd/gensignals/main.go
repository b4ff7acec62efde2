package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"vibration-diag/internal/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// profile describes the synthetic vibration of one operating mode.
type profile struct {
	Name       string
	Amplitude  float64 // shaft harmonic amplitude
	Noise      float64 // gaussian noise standard deviation
	ImpactRate float64 // impacts per second, 0 for none
	ImpactGain float64 // impact peak relative to Amplitude
}

var profiles = []profile{
	{Name: "healthy", Amplitude: 1.0, Noise: 0.05},
	{Name: "inner_race", Amplitude: 1.1, Noise: 0.08, ImpactRate: 162, ImpactGain: 4},
	{Name: "outer_race", Amplitude: 1.2, Noise: 0.08, ImpactRate: 107, ImpactGain: 3},
	{Name: "unbalance", Amplitude: 2.5, Noise: 0.05},
}

const shaftHz = 29.95

func main() {
	var (
		dataPath   = flag.String("data", "data", "Output directory, one sub-directory per class")
		files      = flag.Int("files", 60, "Signal files per class")
		samples    = flag.Int("samples", 2048, "Samples per signal")
		sampleRate = flag.Float64("rate", 12000, "Sampling rate in Hz")
		seed       = flag.Int64("seed", 0, "Random seed, 0 uses the current time")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	for _, p := range profiles {
		dir := filepath.Join(*dataPath, p.Name)
		if err := writeClass(dir, p, *files, *samples, *sampleRate, rng); err != nil {
			log.Fatal().Err(err).Str("class", p.Name).Msg("Failed to generate signals")
		}
		log.Info().Str("class", p.Name).Int("files", *files).Str("dir", dir).Msg("Signals generated")
	}
}

// writeClass writes files signals of profile p into dir as time,data CSV.
func writeClass(dir string, p profile, files, samples int, rate float64, rng *rand.Rand) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for i := 1; i <= files; i++ {
		path := filepath.Join(dir, signal.FileName(i))
		if err := writeSignal(path, synthesize(p, samples, rate, rng), rate); err != nil {
			return err
		}
	}
	return nil
}

func synthesize(p profile, samples int, rate float64, rng *rand.Rand) []float64 {
	out := make([]float64, samples)
	phase := rng.Float64() * 2 * math.Pi
	var nextImpact float64
	if p.ImpactRate > 0 {
		nextImpact = rng.Float64() / p.ImpactRate
	}

	for n := range out {
		t := float64(n) / rate
		v := p.Amplitude * math.Sin(2*math.Pi*shaftHz*t+phase)
		v += 0.3 * p.Amplitude * math.Sin(4*math.Pi*shaftHz*t+phase)
		v += p.Noise * rng.NormFloat64()
		out[n] = v
	}

	// Each impact excites a decaying 3 kHz resonance.
	if p.ImpactRate > 0 {
		period := 1 / p.ImpactRate
		for start := nextImpact; start*rate < float64(samples); start += period {
			first := int(start * rate)
			for n := first; n < samples && n < first+int(rate/500); n++ {
				dt := float64(n-first) / rate
				out[n] += p.ImpactGain * p.Amplitude * math.Exp(-dt*2000) * math.Sin(2*math.Pi*3000*dt)
			}
		}
	}
	return out
}

func writeSignal(path string, samples []float64, rate float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "time,data")
	for n, v := range samples {
		fmt.Fprintf(w, "%.6f,%.8f\n", float64(n)/rate, v)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
