package analysis

import (
	"math/rand"
	"testing"
)

func BenchmarkHighest(b *testing.B) {
	records := randomRecords(rand.New(rand.NewSource(1)), 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Highest(records); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNearestTo(b *testing.B) {
	records := randomRecords(rand.New(rand.NewSource(1)), 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := NearestTo(records, erauLat, erauLon); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSummarize(b *testing.B) {
	records := randomRecords(rand.New(rand.NewSource(1)), 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Summarize(records, erauLat, erauLon); err != nil {
			b.Fatal(err)
		}
	}
}
