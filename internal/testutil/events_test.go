package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvents_OrderAndCopy(t *testing.T) {
	var e Events
	assert.Equal(t, []string{}, e.All())

	e.Add("run")
	e.Addf("cleanup:%d", 1)
	all := e.All()
	assert.Equal(t, []string{"run", "cleanup:1"}, all)

	all[0] = "mutated"
	assert.Equal(t, "run", e.All()[0], "All must return a copy")

	e.Reset()
	assert.Equal(t, 0, e.Len())
}

func TestEvents_ConcurrentAdd(t *testing.T) {
	var e Events
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.Addf("event-%d", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, e.Len())
}
