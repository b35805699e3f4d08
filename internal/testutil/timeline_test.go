package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimelineAdvances(t *testing.T) {
	tl := NewTimeline(1000, 250)
	assert.Equal(t, int64(1000), tl.Next())
	assert.Equal(t, int64(1250), tl.Next())
	assert.Equal(t, int64(1500), tl.Next())
}

func TestTimelineReset(t *testing.T) {
	tl := NewTimeline(0, 100)
	first := []int64{tl.Next(), tl.Next(), tl.Next()}
	tl.Reset()
	second := []int64{tl.Next(), tl.Next(), tl.Next()}
	assert.Equal(t, first, second)
}

func TestTimelineConcurrentUse(t *testing.T) {
	tl := NewTimeline(0, 1)
	var wg sync.WaitGroup
	seen := make([]int64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seen[i] = tl.Next()
		}(i)
	}
	wg.Wait()

	unique := make(map[int64]bool, len(seen))
	for _, v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, 100, "every caller gets a distinct instant")
}
