package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestTableTracksBodies(t *testing.T) {
	table := NewTable()
	a := table.Create(mgl32.Translate3D(1, 2, 3))
	b := table.Create(mgl32.Ident4())
	assert.NotEqual(t, NoBody, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), table.RigidBodyTransform(a))

	table.Set(b, mgl32.Scale3D(2, 2, 2))
	assert.Equal(t, mgl32.Scale3D(2, 2, 2), table.RigidBodyTransform(b))

	table.Remove(a)
	assert.Equal(t, mgl32.Ident4(), table.RigidBodyTransform(a))
	assert.Equal(t, mgl32.Ident4(), table.RigidBodyTransform(NoBody))
}
