package escalation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("n1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlock1 := km.Lock("n1")
	done := make(chan struct{})
	go func() {
		unlock2 := km.Lock("n2")
		unlock2()
		close(done)
	}()
	<-done // would deadlock if n2 waited on n1
	unlock1()
}

func TestKeyedMutex_EntriesAreReleased(t *testing.T) {
	km := newKeyedMutex()
	for i := 0; i < 10; i++ {
		unlock := km.Lock("n1")
		unlock()
	}
	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries, "released keys must not accumulate")
}
