package dryioc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dryioc "github.com/dadhi/DryIoc-sub012"
)

func TestDefault(t *testing.T) {
	t.Cleanup(func() { dryioc.SetDefault(nil) })

	assert.Nil(t, dryioc.Default())

	c := dryioc.New()
	defer c.Close()

	dryioc.SetDefault(c)
	assert.Same(t, c, dryioc.Default())

	other := dryioc.New()
	defer other.Close()

	dryioc.SetDefault(other)
	assert.Same(t, other, dryioc.Default())
	assert.False(t, c.IsDisposed(), "replacing the default does not dispose it")

	dryioc.SetDefault(nil)
	assert.Nil(t, dryioc.Default())
}
