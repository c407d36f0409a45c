package body_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/bossai/internal/game/body"
)

func TestVecArithmetic(t *testing.T) {
	a := body.Vec{X: 3, Y: 4}
	assert.InDelta(t, 5.0, a.Len(), 1e-9)
	assert.Equal(t, body.Vec{X: 4, Y: 6}, a.Add(body.Vec{X: 1, Y: 2}))
	assert.Equal(t, body.Vec{X: 2, Y: 2}, a.Sub(body.Vec{X: 1, Y: 2}))
	assert.InDelta(t, 5.0, a.Dist(body.Vec{}), 1e-9)
	assert.Equal(t, body.Vec{}, body.Vec{}.Norm())
	assert.InDelta(t, math.Pi/2, body.Vec{Y: 1}.Angle(), 1e-9)
}

func TestProperty_NormIsUnit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := body.Vec{
			X: rapid.Float64Range(-1e3, 1e3).Draw(rt, "x"),
			Y: rapid.Float64Range(-1e3, 1e3).Draw(rt, "y"),
		}
		if v.Len() < 1e-6 {
			return
		}
		assert.InDelta(rt, 1.0, v.Norm().Len(), 1e-9)
	})
}
