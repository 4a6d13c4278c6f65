package common

// Canonical dispositions of a Kepler Object of Interest.
const (
	LabelCandidate     = "CANDIDATE"
	LabelConfirmed     = "CONFIRMED"
	LabelFalsePositive = "FALSE POSITIVE"
)

// Feature columns of the NASA cumulative KOI table used by the classifier.
const (
	FeaturePeriod   = "koi_period"
	FeatureDuration = "koi_duration"
	FeatureDepth    = "koi_depth"
	FeaturePrad     = "koi_prad"
	FeatureTeq      = "koi_teq"
	FeatureModelSNR = "koi_model_snr"
	FeatureFlagNT   = "koi_fpflag_nt"
	FeatureFlagSS   = "koi_fpflag_ss"
	FeatureFlagCO   = "koi_fpflag_co"
	FeatureFlagEC   = "koi_fpflag_ec"

	TargetDisposition = "koi_disposition"
)

// DefaultFeatures is the feature order the model is trained with unless
// overridden by configuration.
func DefaultFeatures() []string {
	return []string{
		FeaturePeriod, FeatureDuration, FeatureDepth, FeaturePrad, FeatureTeq,
		FeatureModelSNR, FeatureFlagNT, FeatureFlagSS, FeatureFlagCO, FeatureFlagEC,
	}
}

// CanonicalLabels returns the closed set of dispositions accepted for training.
func CanonicalLabels() []string {
	return []string{LabelConfirmed, LabelCandidate, LabelFalsePositive}
}

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvSourceURL        = "SOURCE_URL"
	EnvSourceTimeout    = "SOURCE_TIMEOUT"
	EnvDataPath         = "DATA_PATH"
	EnvBundleKey        = "BUNDLE_KEY"
	EnvTestRatio        = "TEST_RATIO"
	EnvSeed             = "SEED"
	EnvNEstimators      = "N_ESTIMATORS"
	EnvMaxDepth         = "MAX_DEPTH"
	EnvMinSamplesLeaf   = "MIN_SAMPLES_LEAF"
	EnvRejectDegenerate = "REJECT_DEGENERATE"
	EnvServerPort       = "SERVER_PORT"
	EnvCacheSize        = "CACHE_SIZE"
	EnvMetricsTextfile  = "METRICS_TEXTFILE"
	EnvDriftWindow      = "DRIFT_WINDOW"
)

// Configuration defaults
const (
	DefaultSourceURL      = "https://exoplanetarchive.ipac.caltech.edu/cgi-bin/nstedAPI/nph-nstedAPI?table=cumulative&select=*&format=csv"
	DefaultDataPath       = "saved_model"
	DefaultBundleKey      = "best_exoplanet_classifier"
	DefaultTestRatio      = 0.3
	DefaultSeed           = 42
	DefaultNEstimators    = 200
	DefaultMinSamplesLeaf = 1
	DefaultServerPort     = 8000
	DefaultCacheSize      = 1024
	DefaultDriftWindow    = 1000
)

// Validation constants
const (
	MaxNEstimators = 5000
	MaxMaxDepth    = 512
	MinServerPort  = 1024
	MaxServerPort  = 65535
	MaxCacheSize   = 1 << 20
	MaxDriftWindow = 100000
)

// Common error messages
const (
	ErrMsgModelNotLoaded = "model not loaded"
)
