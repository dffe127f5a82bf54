package service

import (
	"sort"
	"sync"

	"github.com/noah-isme/roombook-api/internal/models"
)

// roomLocks serialises detect-then-create sequences per room inside this
// process. The database row lock covers concurrent processes; this keeps
// in-process contenders from even reaching the database together.
type roomLocks struct {
	mu    sync.Mutex
	locks map[models.RoomKey]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[models.RoomKey]*sync.Mutex)}
}

// Lock acquires the mutex for every given room in deterministic order and
// returns the matching unlock function. Duplicate keys are collapsed.
func (l *roomLocks) Lock(keys ...models.RoomKey) func() {
	unique := make([]models.RoomKey, 0, len(keys))
	seen := make(map[models.RoomKey]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].Less(unique[j]) })

	acquired := make([]*sync.Mutex, 0, len(unique))
	for _, key := range unique {
		acquired = append(acquired, l.mutexFor(key))
	}
	for _, mu := range acquired {
		mu.Lock()
	}

	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (l *roomLocks) mutexFor(key models.RoomKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[key] = mu
	}
	return mu
}
