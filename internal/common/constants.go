package common

// Environment variable keys
const (
	EnvConfigFile   = "CONFIG_FILE"
	EnvDataPath     = "DATA_PATH"
	EnvOffset       = "SIGNAL_OFFSET"
	EnvColumn       = "SIGNAL_COLUMN"
	EnvSeparator    = "SIGNAL_SEPARATOR"
	EnvTargetWidth  = "TARGET_WIDTH"
	EnvCriterion    = "SBS_CRITERION"
	EnvSplitRatio   = "SPLIT_RATIO"
	EnvEpochs       = "EPOCHS"
	EnvLearningRate = "LEARNING_RATE"
	EnvLogEvery     = "LOG_EVERY"
	EnvWorkers      = "WORKERS"
	EnvSeed         = "SEED"
	EnvCachePath    = "CACHE_PATH"
	EnvMetricsPort  = "METRICS_PORT"
	EnvOutputPath   = "OUTPUT_PATH"
	EnvHTTPTimeout  = "HTTP_TIMEOUT"
	EnvStandardize  = "STANDARDIZE"
	EnvSkipDegen    = "SKIP_DEGENERATE"
	EnvEnvFile      = "ENV_FILE"
)

// Configuration defaults
const (
	DefaultDataPath     = "data"
	DefaultOffset       = 10
	DefaultColumn       = 1
	DefaultSeparator    = ","
	DefaultTargetWidth  = 3
	DefaultCriterion    = CriterionVariance
	DefaultSplitRatio   = 0.7
	DefaultEpochs       = 1000
	DefaultLearningRate = 0.01
	DefaultLogEvery     = 100
	DefaultWorkers      = 4
	DefaultOutputPath   = "results"
	DefaultHTTPTimeout  = "10s"
	DefaultEnvFile      = ".env"
)

// Feature selection criteria
const (
	CriterionVariance = "variance"
	CriterionFisher   = "fisher"
)

// Validation constants
const (
	MaxTargetWidth   = 8
	MaxEpochs        = 1_000_000
	MaxLearningRate  = 1.0
	MaxWorkers       = 256
	MinMetricsPort   = 1024
	MaxMetricsPort   = 65535
	SignalFileSuffix = ".csv"
)
