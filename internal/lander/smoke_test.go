package lander

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestTrailDropsFinishedPuffs(t *testing.T) {
	trail := NewTrail(rand.New(rand.NewSource(1)))
	trail.Emit(r2.Vec{X: 10, Y: 10}, r2.Vec{X: 0, Y: 1}, 10, 0.5, 0.05)
	trail.Emit(r2.Vec{X: 20, Y: 10}, r2.Vec{X: 0, Y: 1}, 10, 0.5, 1.0)
	require.Equal(t, 2, trail.Len())

	for i := 0; i < 3; i++ {
		trail.Update(0.02)
	}
	require.Equal(t, 1, trail.Len())
	assert.InDelta(t, 1.0, trail.Puffs()[0].MaxLifetime, 1e-12)

	trail.Clear()
	assert.Zero(t, trail.Len())
}

func TestPuffBouncesOnceAtGround(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := Puff{
		Position:    r2.Vec{X: 0, Y: DefaultGroundY - 1},
		Direction:   r2.Vec{X: 0, Y: 1},
		Speed:       1000,
		Scale:       1,
		MaxLifetime: 10,
	}

	p.update(0.01, DefaultGroundY, rng)
	require.True(t, p.Hit)
	assert.Equal(t, DefaultGroundY, p.Position.Y)
	assert.InDelta(t, 1.0, abs(p.Direction.X), 1e-12)
	assert.LessOrEqual(t, p.Direction.Y, 0.0)

	dir := p.Direction
	p.Position.Y = DefaultGroundY + 50
	p.update(0.01, DefaultGroundY, rng)
	assert.Equal(t, dir, p.Direction, "second crossing must not bounce again")
}

func TestPuffGrowsAndAges(t *testing.T) {
	p := Puff{Direction: r2.Vec{X: 1}, Speed: 100, Scale: 1, MaxLifetime: 1}
	p.update(0.1, DefaultGroundY, rand.New(rand.NewSource(1)))

	assert.InDelta(t, 1.25, p.Scale, 1e-12)
	assert.InDelta(t, 0.1, p.Ratio(), 1e-12)
	assert.InDelta(t, 100*0.1/1.25, p.Position.X, 1e-9)
	assert.False(t, p.Done())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
