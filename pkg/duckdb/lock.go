package duck

import "sync"

// databaseLocks maps database paths to their corresponding locks, DuckDB allows a single writer per file.
var databaseLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: make(map[string]*sync.Mutex),
}

func lockFor(path string) *sync.Mutex {
	databaseLocks.Lock()
	defer databaseLocks.Unlock()

	lock, ok := databaseLocks.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		databaseLocks.locks[path] = lock
	}
	return lock
}

// LockDatabase blocks until no other component of the process uses the database at path.
func LockDatabase(path string) {
	lockFor(path).Lock()
}

func UnlockDatabase(path string) {
	lockFor(path).Unlock()
}
