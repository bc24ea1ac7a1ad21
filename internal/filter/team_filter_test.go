package filter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/collinh52/cbb-predictor-sub000/internal/config"
	"github.com/collinh52/cbb-predictor-sub000/internal/models"
)

func newTestFilter(t *testing.T, teamID string) *TeamFilter {
	t.Helper()
	f, err := NewTeamFilter(teamID, config.DefaultFilterConfig(), nil)
	if err != nil {
		t.Fatalf("NewTeamFilter: %v", err)
	}
	return f
}

func defaultFeatures() models.TeamFeatures {
	return models.TeamFeatures{HealthStatus: 1.0, Momentum: 0, Fatigue: 0, Pace: 70}
}

// Two default teams, home court: no rating gap, so the expected score
// differential is exactly the home advantage and the expected total is the
// plain pace conversion.
func TestExpectedMeasurementAtDefaults(t *testing.T) {
	f := newTestFilter(t, "duke")
	opp := DefaultState(3.0)

	diff, total, pace := f.ExpectedMeasurement(opp, true)
	if math.Abs(diff-3.0) > 1e-9 {
		t.Fatalf("expected score differential 3.0, got %v", diff)
	}
	if math.Abs(total-140.0) > 1e-9 {
		t.Fatalf("expected total 140, got %v", total)
	}
	if math.Abs(pace-70.0) > 1e-9 {
		t.Fatalf("expected pace 70, got %v", pace)
	}

	diff, _, _ = f.ExpectedMeasurement(opp, false)
	if math.Abs(diff-0.0) > 1e-9 {
		t.Fatalf("expected no home edge on the road, got %v", diff)
	}
}

// An 80-70 home win over an equal opponent: expected own score is 70, so the
// residual nudge alone moves the offensive rating by exactly +1.0. This runs
// without the unscented correction to pin down the heuristic in isolation.
func TestResidualNudgeInIsolation(t *testing.T) {
	f := newTestFilter(t, "duke")
	obs := Observation{
		Score:         80,
		OpponentScore: 70,
		IsHome:        true,
		Features:      defaultFeatures(),
		ActualPace:    70,
		Opponent:      DefaultState(3.0),
	}

	f.ApplyResidualNudge(obs)

	s := f.State()
	if math.Abs(s[IdxOffense]-101.0) > 1e-9 {
		t.Fatalf("expected offensive rating 101.0 after nudge, got %v", s[IdxOffense])
	}
	// Opponent scored exactly their expectation, so defense is untouched.
	if math.Abs(s[IdxDefense]-100.0) > 1e-9 {
		t.Fatalf("expected defensive rating 100.0 after nudge, got %v", s[IdxDefense])
	}
}

func TestUpdateMovesRatingsTowardResult(t *testing.T) {
	f := newTestFilter(t, "duke")
	f.Update(Observation{
		Score:         90,
		OpponentScore: 60,
		IsHome:        true,
		Features:      defaultFeatures(),
		ActualPace:    72,
		Opponent:      DefaultState(3.0),
	})

	s := f.State()
	if s[IdxOffense] <= 100 {
		t.Fatalf("blowout win should raise offensive rating, got %v", s[IdxOffense])
	}
	if s[IdxDefense] <= 100 {
		t.Fatalf("holding the opponent under expectation should raise defensive rating, got %v", s[IdxDefense])
	}
	// Pace smoothing: 0.9*70 + 0.1*72 plus whatever the correction adds.
	if s[IdxPace] < 70 || s[IdxPace] > 73 {
		t.Fatalf("pace should drift toward 72, got %v", s[IdxPace])
	}
}

func TestUpdateOverwritesContextComponents(t *testing.T) {
	f := newTestFilter(t, "duke")
	f.Update(Observation{
		Score:         75,
		OpponentScore: 70,
		IsHome:        false,
		Features:      models.TeamFeatures{HealthStatus: 0.6, Momentum: -0.4, Fatigue: 0.3, Pace: 70},
		ActualPace:    70,
		Opponent:      DefaultState(3.0),
	})

	s := f.State()
	// Context components are point observations; the correction leaves
	// them exactly where the feature bundle put them.
	if math.Abs(s[IdxHealth]-0.6) > 1e-9 {
		t.Fatalf("health should track the feature bundle, got %v", s[IdxHealth])
	}
	if math.Abs(s[IdxMomentum]+0.4) > 1e-9 {
		t.Fatalf("momentum should track the feature bundle, got %v", s[IdxMomentum])
	}
	if math.Abs(s[IdxFatigue]-0.3) > 1e-9 {
		t.Fatalf("fatigue should track the feature bundle, got %v", s[IdxFatigue])
	}
}

func TestHomeAdvantageSmoothingOnlyAtHome(t *testing.T) {
	home := newTestFilter(t, "duke")
	road := newTestFilter(t, "unc")

	obs := Observation{
		Score:         100,
		OpponentScore: 60,
		IsHome:        true,
		Features:      defaultFeatures(),
		ActualPace:    70,
		Opponent:      DefaultState(3.0),
	}
	home.Update(obs)

	obs.IsHome = false
	road.Update(obs)

	if home.State()[IdxHomeAdvantage] <= 3.0 {
		t.Fatalf("big home win should raise home advantage, got %v", home.State()[IdxHomeAdvantage])
	}
	if math.Abs(road.State()[IdxHomeAdvantage]-3.0) > 0.5 {
		t.Fatalf("road games should not smooth home advantage, got %v", road.State()[IdxHomeAdvantage])
	}
}

func TestNonFiniteInputsAreSkipped(t *testing.T) {
	f := newTestFilter(t, "duke")
	f.Update(Observation{
		Score:         80,
		OpponentScore: 70,
		IsHome:        true,
		Features:      models.TeamFeatures{HealthStatus: math.NaN(), Momentum: math.Inf(1), Fatigue: 0, Pace: 70},
		ActualPace:    math.NaN(),
		Opponent:      DefaultState(3.0),
	})

	s := f.State()
	for i := 0; i < StateDim; i++ {
		if !isFinite(s[i]) {
			t.Fatalf("component %d became non-finite: %v", i, s[i])
		}
	}
	// The NaN pace observation must not have corrupted the estimate.
	if s[IdxPace] < 60 || s[IdxPace] > 80 {
		t.Fatalf("pace out of domain after skipped observation: %v", s[IdxPace])
	}
}

// Replay 1000 adversarial games with extreme scores and out-of-range
// features; every state component must stay inside its documented domain.
func TestDomainClampingUnderAdversarialGames(t *testing.T) {
	f := newTestFilter(t, "duke")
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		opp := DefaultState(3.0)
		opp[IdxOffense] = 50 + rng.Float64()*100
		opp[IdxDefense] = 50 + rng.Float64()*100
		opp[IdxPace] = 40 + rng.Float64()*80

		f.Update(Observation{
			Score:         40 + rng.Intn(120),
			OpponentScore: 40 + rng.Intn(120),
			IsHome:        rng.Intn(2) == 0,
			Features: models.TeamFeatures{
				HealthStatus: rng.Float64()*3 - 1,
				Momentum:     rng.Float64()*4 - 2,
				Fatigue:      rng.Float64() * 2,
				Pace:         rng.Float64() * 200,
			},
			ActualPace: rng.Float64() * 200,
			Opponent:   opp,
		})

		s := f.State()
		for c := 0; c < StateDim; c++ {
			if s[c] < stateLower[c]-1e-9 || s[c] > stateUpper[c]+1e-9 {
				t.Fatalf("game %d: component %d out of domain: %v", i, c, s[c])
			}
		}
	}
}

// The same ordered games from a fresh filter produce identical state; the
// whole pipeline is deterministic.
func TestReplayDeterminism(t *testing.T) {
	build := func() State {
		f := newTestFilter(t, "duke")
		scores := [][2]int{{80, 70}, {65, 77}, {91, 88}, {60, 75}}
		for i, sc := range scores {
			f.Update(Observation{
				Score:         sc[0],
				OpponentScore: sc[1],
				IsHome:        i%2 == 0,
				Features:      models.TeamFeatures{HealthStatus: 0.9, Momentum: 0.1, Fatigue: 0.2, Pace: 68},
				ActualPace:    68,
				Opponent:      DefaultState(3.0),
			})
		}
		return f.State()
	}

	first := build()
	second := build()
	for i := 0; i < StateDim; i++ {
		if first[i] != second[i] {
			t.Fatalf("component %d differs between identical replays: %v vs %v", i, first[i], second[i])
		}
	}
}
