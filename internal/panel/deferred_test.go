package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(d *DeferredSetup) {
	for fn, ok := d.Next(); ok; fn, ok = d.Next() {
		fn()
	}
}

func TestDeferredSetup_FiresOnceInOrder(t *testing.T) {
	var d DeferredSetup
	var order []int
	assert.False(t, d.Register(func() { order = append(order, 1) }))
	assert.False(t, d.Register(func() { order = append(order, 2) }))
	assert.Equal(t, 2, d.Pending())

	assert.True(t, d.Fire())
	drain(&d)
	assert.False(t, d.Fire())
	assert.Equal(t, []int{1, 2}, order)
	assert.True(t, d.Fired())
	assert.Equal(t, 0, d.Pending())
}

func TestDeferredSetup_RegisterAfterFire(t *testing.T) {
	var d DeferredSetup
	assert.True(t, d.Fire())
	drain(&d)
	assert.True(t, d.Register(func() {}))
	assert.Equal(t, 0, d.Pending())
}

func TestDeferredSetup_RegisterWhileFiringQueuesBehind(t *testing.T) {
	var d DeferredSetup
	var order []int
	d.Register(func() {
		order = append(order, 1)
		assert.False(t, d.Register(func() { order = append(order, 3) }))
	})
	d.Register(func() { order = append(order, 2) })

	assert.True(t, d.Fire())
	assert.False(t, d.Fired())
	drain(&d)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.True(t, d.Fired())
}

func TestDeferredSetup_CancelWhileFiring(t *testing.T) {
	var d DeferredSetup
	var order []int
	d.Register(func() {
		order = append(order, 1)
		d.Cancel()
	})
	d.Register(func() { order = append(order, 2) })

	assert.True(t, d.Fire())
	drain(&d)
	assert.Equal(t, []int{1}, order)
	assert.False(t, d.Fired())
	assert.False(t, d.Register(func() { order = append(order, 3) }))
	assert.Equal(t, "cancelled", d.phase.String())
}

func TestDeferredSetup_Cancel(t *testing.T) {
	var d DeferredSetup
	d.Register(func() { t.Fatal("cancelled initializer ran") })
	d.Cancel()

	assert.False(t, d.Fire())
	drain(&d)
	assert.False(t, d.Register(func() { t.Fatal("registered after cancel ran") }))
	assert.False(t, d.Fired())
	assert.Equal(t, "cancelled", d.phase.String())
}
