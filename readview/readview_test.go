package readview

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sutradb/sutra/snapshot"
	"github.com/sutradb/sutra/types"
)

func TestReadViewLoadStore(t *testing.T) {
	v := New()
	require.Equal(t, 0, v.Load().Len())

	b := snapshot.NewBuilder(v.Load())
	b.PutConcept(types.ConceptNode{ID: types.ConceptId{1}})
	v.Store(b.Build(1))

	require.Equal(t, 1, v.Load().Len())
}

func TestReadViewConcurrentLoadDuringStore(t *testing.T) {
	v := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			b := snapshot.NewBuilder(v.Load())
			b.PutConcept(types.ConceptNode{ID: types.ConceptId{byte(i)}})
			v.Store(b.Build(uint64(i)))
		}
		close(stop)
	}()

	readers := 4
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = v.Load().Len()
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 100, v.Load().Len())
}
