// Package constants provides named constants used throughout the socioscope codebase.
// This centralizes the thresholds that shape grouping, pattern detection and
// the disruption controller.
package constants

import "time"

// Grouping thresholds
const (
	// DefaultMaxDistance is the proximity threshold for spatial grouping.
	// Agents closer than this are linked into the same derived group.
	DefaultMaxDistance = 80.0

	// DefaultMinRelationshipStrength is the minimum strength for relationship grouping.
	DefaultMinRelationshipStrength = 60.0

	// MinGroupSize is the smallest component reported as a group. Singletons are dropped.
	MinGroupSize = 2
)

// Relational analysis constants
const (
	// DistanceScale normalizes distance in the entanglement decay term 1/(1+d/scale).
	DistanceScale = 100.0

	// CoherenceVarianceDivisor converts mean attribute variance into coherence loss.
	CoherenceVarianceDivisor = 10.0

	// DisruptionDecoherenceWeight is the decoherence added per unit of active disruption intensity.
	DisruptionDecoherenceWeight = 5.0

	// TunnelingStrengthThreshold is the relationship strength above which a
	// connection is checked for improbability.
	TunnelingStrengthThreshold = 60.0

	// TunnelingDistanceThreshold is the distance beyond which a strong
	// connection counts as improbable.
	TunnelingDistanceThreshold = 200.0

	// TunnelingCompatibilityThreshold is the compatibility below which a
	// strong connection counts as improbable.
	TunnelingCompatibilityThreshold = 40.0

	// NeutralCompatibility is returned for behavior types missing from the table.
	NeutralCompatibility = 50.0

	// WaveFunctionSamples is the length of the derived signal array.
	WaveFunctionSamples = 50
)

// Resonance pattern thresholds
const (
	// MaxResonanceEvents caps field-pair pattern events per pass.
	MaxResonanceEvents = 20

	// MaxEmergenceEvents caps cluster and behavior emergence events per pass.
	MaxEmergenceEvents = 15

	// SyncFrequencyDelta is the maximum frequency gap for synchronization.
	SyncFrequencyDelta = 0.1

	// InterferenceFrequencyDelta is the maximum frequency gap for interference.
	InterferenceFrequencyDelta = 0.05

	// AmplificationRatioTolerance is how close f1/f2 must be to an integer.
	AmplificationRatioTolerance = 0.1
)

// Descriptive probabilities attached to pattern events. They are shown to
// operators and never used to gate behavior.
const (
	SynchronizationProbability = 0.85
	InterferenceProbability    = 0.75
	AmplificationProbability   = 0.65
	ClusterProbability         = 0.85
	EmergenceProbability       = 0.75
)

// Intelligence cluster thresholds
const (
	// ClusterRelationshipThreshold is the anchor-to-member strength a member needs.
	ClusterRelationshipThreshold = 60.0

	// DefaultProximityThreshold is the maximum anchor-to-member distance.
	DefaultProximityThreshold = 150.0

	// ClusterInnovationBar qualifies a member by innovation.
	ClusterInnovationBar = 70.0

	// ClusterCooperationBar qualifies a member by cooperation.
	ClusterCooperationBar = 75.0

	// MinClusterMembers is the number of qualifying members (excluding the anchor).
	MinClusterMembers = 3

	// MinIntelligenceLevel is the mean(innovation, cooperation) a cluster must exceed.
	MinIntelligenceLevel = 65.0

	// MinEmergencePopulation is the smallest population evaluated for behavior emergence.
	MinEmergencePopulation = 3
)

// Disruption controller timing
const (
	// BaseInterval is the adaptive cooldown before scaling.
	BaseInterval = 20 * time.Second

	// FixedInterval is used when adaptive frequency is off.
	FixedInterval = 30 * time.Second

	// MinInterval and MaxInterval bound the adaptive cooldown.
	MinInterval = 10 * time.Second
	MaxInterval = 60 * time.Second

	// MinIntelligenceLevelSetting and MaxIntelligenceLevelSetting bound the operator setting.
	MinIntelligenceLevelSetting = 1
	MaxIntelligenceLevelSetting = 5

	// DefaultIntelligenceLevel is the operator setting used when none is configured.
	DefaultIntelligenceLevel = 3
)

// Event log retention
const (
	// DefaultEventRetention is how many analysis events the log keeps.
	DefaultEventRetention = 500

	// TrendStableBand is the absolute change below which a metric trend is stable.
	TrendStableBand = 5.0
)
