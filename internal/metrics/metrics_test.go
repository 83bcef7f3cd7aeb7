package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.Counter("test_total", "help")
	c.Inc()
	c.Add(4)

	assert.Equal(t, int64(5), c.Value())
	assert.Same(t, c, r.Counter("test_total", "ignored"))
}

func TestGaugeConcurrentAdd(t *testing.T) {
	g := NewRegistry().Gauge("test_gauge", "help")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50.0, g.Get())

	g.Dec()
	g.Set(2.5)
	assert.Equal(t, 2.5, g.Get())
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogram("lat_seconds", "help", []float64{0.1, 1})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(5)

	var b strings.Builder
	h.export(&b)
	out := b.String()

	assert.Equal(t, int64(3), h.Count())
	assert.Contains(t, out, `lat_seconds_bucket{le="0.1"} 1`)
	assert.Contains(t, out, `lat_seconds_bucket{le="1"} 2`)
	assert.Contains(t, out, `lat_seconds_bucket{le="+Inf"} 3`)
	assert.Contains(t, out, "lat_seconds_sum 5.55")
	assert.Contains(t, out, "lat_seconds_count 3")
}

func TestExportSortedAndTyped(t *testing.T) {
	r := NewRegistry()
	r.Counter("b_total", "second").Add(2)
	r.Counter("a_total", "first").Inc()
	r.Gauge("records", "snapshot size").Set(12)

	out := r.Export()
	assert.Contains(t, out, "# TYPE a_total counter\na_total 1\n")
	assert.Contains(t, out, "# TYPE records gauge\nrecords 12\n")
	assert.Less(t, strings.Index(out, "a_total"), strings.Index(out, "b_total"))
	assert.Contains(t, out, "go_goroutines")
}
