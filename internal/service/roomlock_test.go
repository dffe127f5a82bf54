package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/roombook-api/internal/models"
)

func TestRoomLocksMutualExclusion(t *testing.T) {
	locks := newRoomLocks()
	key := models.RoomKey{RoomNumber: "101", BuildingNumber: 1}

	const workers = 50
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(key)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, workers, counter)
}

func TestRoomLocksDuplicateKeysCollapse(t *testing.T) {
	locks := newRoomLocks()
	key := models.RoomKey{RoomNumber: "101", BuildingNumber: 1}

	// locking the same key twice in one call must not self-deadlock
	unlock := locks.Lock(key, key)
	unlock()

	unlock = locks.Lock(key)
	unlock()
}

func TestRoomLocksOrderedAcquisition(t *testing.T) {
	locks := newRoomLocks()
	a := models.RoomKey{RoomNumber: "101", BuildingNumber: 1}
	b := models.RoomKey{RoomNumber: "202", BuildingNumber: 1}

	// opposite declaration orders must not deadlock
	const rounds = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			unlock := locks.Lock(a, b)
			unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			unlock := locks.Lock(b, a)
			unlock()
		}
	}()
	wg.Wait()
}
