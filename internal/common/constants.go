package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvDataPath        = "DATA_PATH"
	EnvDatasetPath     = "DATASET_PATH"
	EnvDatasetURL      = "DATASET_URL"
	EnvDatasetDownload = "DATASET_DOWNLOAD"
	EnvDownloadTimeout = "DOWNLOAD_TIMEOUT"
	EnvStaticDir       = "STATIC_DIR"
	EnvCORSOrigins     = "CORS_ORIGINS"
	EnvTestSize        = "TEST_SIZE"
	EnvSplitSeed       = "SPLIT_SEED"
	EnvRegC            = "REG_C"
	EnvMaxIter         = "MAX_ITER"
	EnvCacheSize       = "CACHE_SIZE"
	EnvCacheTTL        = "CACHE_TTL"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvRetrainOnStart  = "RETRAIN_ON_START"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvLogFile         = "LOG_FILE"
)

// Configuration defaults
const (
	DefaultPort            = 5000
	DefaultDataPath        = "data"
	DefaultDatasetPath     = "data/wdbc.data"
	DefaultDatasetURL      = "https://archive.ics.uci.edu/ml/machine-learning-databases/breast-cancer-wisconsin/wdbc.data"
	DefaultStaticDir       = "../frontend/build"
	DefaultTestSize        = 0.2
	DefaultSplitSeed       = 2
	DefaultRegC            = 1.0
	DefaultMaxIter         = 100
	DefaultCacheSize       = 1000
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultLogMaxSizeMB    = 50
	DefaultLogMaxBackups   = 3
	DefaultLogMaxAgeDays   = 14
	FeatureCount           = 30
	MaxBatchSamples        = 1000
	ModelsDBFile           = "models.db"
	ModelTypeName          = "Logistic Regression"
	ModelDescription       = "Breast Cancer Detection Model trained on Wisconsin Breast Cancer Dataset"
	RequestIDHeader        = "X-Request-ID"
	DefaultWSReadLimit     = 64 << 10
	DefaultWSWriteWaitSecs = 10
)
