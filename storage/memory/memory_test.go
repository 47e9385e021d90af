package memory

import (
	"sync"
	"testing"

	"github.com/Digital-Defiance/walletsession/storage/storetest"
)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, NewStore())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set("k", "v")
				s.Get("k")
				s.Has("k")
			}
		}()
	}
	wg.Wait()
}
