package indexer

import (
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/config"
)

func BenchmarkEngineIndex(b *testing.B) {
	for _, preload := range []int{100, 1000, 5000} {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			e, err := NewEngine(config.IndexerConfig{
				DataDir:        b.TempDir(),
				SegmentMaxDocs: 1 << 30,
				FlushInterval:  time.Hour,
				ReloadInterval: time.Hour,
			}, nil)
			if err != nil {
				b.Fatal(err)
			}
			defer e.Close()
			for i := 0; i < preload; i++ {
				if err := e.IndexDocument(doc(i)); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := e.IndexDocument(doc(preload + i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
