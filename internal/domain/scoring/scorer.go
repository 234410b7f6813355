package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

// LagBand removes Penalty × MaxScore points when the head block is more than Behind old.
type LagBand struct {
	Behind  time.Duration
	Penalty float64
}

// LagFloor lifts a lagging node back to Floor × MaxScore when it scored above Above × MaxScore
// before the lag penalty.
type LagFloor struct {
	Above float64
	Floor float64
}

// Policy holds every tunable of the scoring formula.
type Policy struct {
	MaxScore           float64
	StageWeight        float64
	PluginWeight       float64
	RetryPenalty       float64
	NominalLatency     time.Duration
	LatencyStep        time.Duration
	LatencyStepPenalty float64
	MaxLatencyPenalty  float64
	LagBands           []LagBand
	LagRescueBelow     float64
	LagFloors          []LagFloor
	GoodThreshold      int
	BadThreshold       int
}

// DefaultPolicy returns the stock weights: full coverage scores 50, and half the plugins over two of
// three stages scores 2.
func DefaultPolicy() Policy {
	return Policy{
		MaxScore:           50,
		StageWeight:        48,
		PluginWeight:       64,
		RetryPenalty:       2,
		NominalLatency:     1500 * time.Millisecond,
		LatencyStep:        500 * time.Millisecond,
		LatencyStepPenalty: 1,
		MaxLatencyPenalty:  10,
		LagBands: []LagBand{
			{Behind: 24 * time.Hour, Penalty: 0.8},
			{Behind: time.Hour, Penalty: 0.5},
			{Behind: 10 * time.Minute, Penalty: 0.3},
			{Behind: 5 * time.Minute, Penalty: 0.15},
			{Behind: time.Minute, Penalty: 0.10},
			{Behind: 30 * time.Second, Penalty: 0.05},
		},
		LagRescueBelow: 0.1,
		LagFloors: []LagFloor{
			{Above: 0.8, Floor: 0.2},
			{Above: 0.5, Floor: 0.1},
			{Above: 0.2, Floor: 0.05},
		},
		GoodThreshold: 40,
		BadThreshold:  10,
	}
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.MaxScore <= 0 {
		return fmt.Errorf("%w: max score must be positive", apperrors.ErrInvalidInput)
	}
	if p.StageWeight < 0 || p.PluginWeight < 0 || p.RetryPenalty < 0 || p.LatencyStepPenalty < 0 {
		return fmt.Errorf("%w: scoring weights cannot be negative", apperrors.ErrInvalidInput)
	}
	if p.BadThreshold > p.GoodThreshold {
		return fmt.Errorf("%w: bad threshold %d above good threshold %d",
			apperrors.ErrInvalidInput, p.BadThreshold, p.GoodThreshold,
		)
	}
	return nil
}

// Scorer reduces scan results to a Classification.
type Scorer struct {
	policy Policy
}

// NewScorer creates a scorer. Lag bands and floors are sorted highest first.
func NewScorer(policy Policy) *Scorer {
	bands := make([]LagBand, len(policy.LagBands))
	copy(bands, policy.LagBands)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].Behind > bands[j].Behind })
	policy.LagBands = bands

	floors := make([]LagFloor, len(policy.LagFloors))
	copy(floors, policy.LagFloors)
	sort.SliceStable(floors, func(i, j int) bool { return floors[i].Above > floors[j].Above })
	policy.LagFloors = floors
	return &Scorer{policy: policy}
}

// Policy returns the policy in use.
func (s *Scorer) Policy() Policy {
	return s.policy
}

// Classify scores r and assigns its status.
func (s *Scorer) Classify(r entity.ScanResult) entity.Classification {
	if !r.Connected {
		return entity.Classification{Score: 0, Status: entity.StatusDead}
	}

	score := s.Score(r)

	var status entity.Status
	switch {
	case !r.MetadataKnown():
		status = entity.StatusError
	case score >= int(math.Round(s.policy.MaxScore)):
		status = entity.StatusPerfect
	case score >= s.policy.GoodThreshold:
		status = entity.StatusGood
	case score >= s.policy.BadThreshold:
		status = entity.StatusUnstable
	default:
		status = entity.StatusBad
	}

	return entity.Classification{Score: score, Status: status}
}

// Score computes the numeric score of a connected result.
func (s *Scorer) Score(r entity.ScanResult) int {
	if !r.Connected {
		return 0
	}
	p := s.policy

	score := p.MaxScore
	if r.PluginsTested {
		score -= p.StageWeight * (1 - ratio(r.StagesPassed(), r.StagesTotal))
		score -= p.PluginWeight * (1 - ratio(r.PluginsPassed(), r.PluginsTotal))
	}
	score -= p.RetryPenalty * float64(r.Retries())
	score -= s.latencyPenalty(r.AvgResponseTime())
	score = s.applyLag(score, r.TimeBehind())

	return int(math.Round(math.Max(0, math.Min(p.MaxScore, score))))
}

func (s *Scorer) latencyPenalty(avg time.Duration) float64 {
	p := s.policy
	if avg <= p.NominalLatency || p.LatencyStep <= 0 {
		return 0
	}
	steps := math.Ceil(float64(avg-p.NominalLatency) / float64(p.LatencyStep))
	return math.Min(p.MaxLatencyPenalty, steps*p.LatencyStepPenalty)
}

// applyLag subtracts the lag penalty. A node pushed below LagRescueBelow by lag alone is
// lifted to the floor matching its pre-lag score.
func (s *Scorer) applyLag(score float64, behind time.Duration) float64 {
	p := s.policy
	penalty := s.lagPenalty(behind)
	if penalty == 0 {
		return score
	}

	lagged := score - penalty
	if lagged >= p.LagRescueBelow*p.MaxScore {
		return lagged
	}
	for _, f := range p.LagFloors {
		if score > f.Above*p.MaxScore {
			return math.Max(lagged, math.Floor(f.Floor*p.MaxScore))
		}
	}
	return lagged
}

func (s *Scorer) lagPenalty(behind time.Duration) float64 {
	for _, band := range s.policy.LagBands {
		if behind > band.Behind {
			return band.Penalty * s.policy.MaxScore
		}
	}
	return 0
}

// IsGood reports whether c passes as healthy for exit code purposes.
func IsGood(c entity.Classification, minScore int) bool {
	return (c.Status == entity.StatusPerfect || c.Status == entity.StatusGood) && c.Score >= minScore
}

func ratio(passed, total int) float64 {
	if total <= 0 {
		return 1
	}
	if passed > total {
		passed = total
	}
	return float64(passed) / float64(total)
}
