package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLockerSerialisesPerKey(t *testing.T) {
	locker := NewKeyedLocker()
	var wg sync.WaitGroup
	counts := map[string]*int{"a": new(int), "b": new(int)}

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				unlock := locker.Lock(key)
				*counts[key]++
				unlock()
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 50, *counts["a"])
	assert.Equal(t, 50, *counts["b"])
	assert.Zero(t, locker.size())
}

func TestPrincipalSet(t *testing.T) {
	set := newPrincipalSet()
	set.add("core")
	assert.True(t, set.has("core"))
	assert.False(t, set.has("rewards"))
	set.remove("core")
	assert.False(t, set.has("core"))
}
