package objective

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestStepAdvancesOncePerDwell(t *testing.T) {
	cfg := DefaultConfig()
	targets := []r2.Vec{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 800, Y: 900}}
	var o Objective
	o.Reset(r2.Vec{X: 0, Y: 50}, targets)
	require.InDelta(t, 50.0, o.Points, 1e-12)

	pos := r2.Vec{}
	advances := 0
	var total float64
	for i := 0; i < 30; i++ {
		dist := r2.Norm(r2.Sub(o.Target(targets), pos))
		reward, advanced := o.Step(cfg, targets, pos, math.Pi/2, dist, 0.1)
		if advanced {
			advances++
		}
		total += reward
	}

	assert.Equal(t, 1, advances)
	assert.Equal(t, 1, o.TargetID)
	assert.InDelta(t, 100.0, o.Points, 1e-12)
	assert.InDelta(t, 10*50.0, total, 1e-9)
	assert.Zero(t, o.TimeIn)
	assert.Greater(t, o.TimeOut, 1.0)
}

func TestStepNeverSkipsMoreThanOneIndexPerTick(t *testing.T) {
	cfg := DefaultConfig()
	same := r2.Vec{X: 10, Y: 10}
	targets := []r2.Vec{same, same, same, same, same, {X: 800, Y: 900}}
	var o Objective
	o.Reset(same, targets)

	prev := o.TargetID
	advances := 0
	for i := 0; i < 50; i++ {
		_, advanced := o.Step(cfg, targets, same, math.Pi/2, 0, 0.1)
		if advanced {
			advances++
			require.Equal(t, prev+1, o.TargetID)
			prev = o.TargetID
		} else {
			require.Equal(t, prev, o.TargetID)
		}
	}
	// a dwell of more than 1s at 0.1s per tick takes 10 or 11 ticks
	assert.GreaterOrEqual(t, advances, 4)
	assert.LessOrEqual(t, advances, 5)
}

func TestFinalPadNeverAdvances(t *testing.T) {
	cfg := DefaultConfig()
	targets := []r2.Vec{{X: 400, Y: 400}, {X: 800, Y: 900}}
	o := Objective{TargetID: 1}
	pos := r2.Vec{X: 800, Y: 900}

	for i := 0; i < 500; i++ {
		o.CheckLanding(cfg, targets, pos, 1.0)
		_, advanced := o.Step(cfg, targets, pos, 1.0, 0, 0.1)
		require.False(t, advanced)
	}
	assert.Equal(t, 1, o.TargetID)
}

func TestFinalPadHoldsWithCoarseStep(t *testing.T) {
	cfg := DefaultConfig()
	targets := []r2.Vec{{X: 400, Y: 400}, {X: 800, Y: 900}}
	o := Objective{TargetID: 1}
	pos := r2.Vec{X: 800, Y: 900}

	// one tick longer than the whole dwell
	dt := 2 * cfg.TargetTime
	for i := 0; i < 10; i++ {
		reward, advanced := o.Step(cfg, targets, pos, math.Pi/2, 0, dt)
		require.False(t, advanced)
		require.Zero(t, reward)
	}
	assert.Equal(t, 1, o.TargetID)
	assert.Zero(t, o.TimeIn)
}

func TestCheckLandingUsesHorizontalOffset(t *testing.T) {
	cfg := DefaultConfig()
	targets := []r2.Vec{{X: 400, Y: 400}, {X: 800, Y: 900}}

	o := Objective{TargetID: 1, TimeIn: 0.4}
	assert.True(t, o.CheckLanding(cfg, targets, r2.Vec{X: 800.5, Y: 600}, math.Pi/2))
	assert.Zero(t, o.TimeIn)

	assert.False(t, o.CheckLanding(cfg, targets, r2.Vec{X: 802, Y: 900}, math.Pi/2))
	assert.False(t, o.CheckLanding(cfg, targets, r2.Vec{X: 800, Y: 900}, math.Pi/2+0.02))

	o.TargetID = 0
	assert.False(t, o.CheckLanding(cfg, targets, targets[0], math.Pi/2))
}

func TestRewardScalesWithAlignmentAndTimeOut(t *testing.T) {
	cfg := DefaultConfig()
	targets := []r2.Vec{{}, {X: 30, Y: 40}, {X: 800, Y: 900}}
	o := Objective{Points: 50, TimeOut: 0.5, TimeIn: cfg.TargetTime}

	reward, advanced := o.Step(cfg, targets, r2.Vec{}, math.Pi/2, 0, 0.01)
	require.True(t, advanced)
	assert.InDelta(t, 10*50/1.5, reward, 1e-9)
	assert.InDelta(t, 50.0, o.Points, 1e-12)

	tilted := Objective{Points: 50, TimeIn: cfg.TargetTime}
	reward, _ = tilted.Step(cfg, targets, r2.Vec{}, math.Pi/6, 0, 0.01)
	assert.InDelta(t, 10*0.25*50, reward, 1e-9)
}

func TestGenerateKeepsPadLast(t *testing.T) {
	arena := r2.Vec{X: 1600, Y: 900}
	targets := Generate(rand.New(rand.NewSource(7)), arena, DefaultTargetCount)
	require.Len(t, targets, DefaultTargetCount)

	assert.Equal(t, Pad(arena), targets[len(targets)-1])
	for _, p := range targets[:len(targets)-1] {
		assert.GreaterOrEqual(t, p.X, DefaultBorderX)
		assert.LessOrEqual(t, p.X, arena.X-DefaultBorderX)
		assert.GreaterOrEqual(t, p.Y, DefaultBorderY)
		assert.LessOrEqual(t, p.Y, arena.Y-DefaultBorderY)
	}
}
