package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()

	const workers = 100
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("koi")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	defer unlockA()

	// A held lock on "a" must not block "b".
	done := make(chan struct{})
	go func() {
		unlockB := k.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
}
