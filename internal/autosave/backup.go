package autosave

import "sync"

// Backup is the ephemeral safety net written best-effort when a session
// closes: if a crash interrupts the durable write, the next open can still
// hydrate from here. It lives in process memory only.
type Backup struct {
	StateJSON []byte
	Answers   map[string]string
}

func (b Backup) Empty() bool {
	return len(b.StateJSON) == 0 && len(b.Answers) == 0
}

type BackupCache struct {
	mu sync.Mutex
	m  map[string]Backup
}

func NewBackupCache() *BackupCache {
	return &BackupCache{m: map[string]Backup{}}
}

// Key scopes a backup to exactly one user+test pair.
func Key(userID, testID string) string { return userID + "|" + testID }

func (c *BackupCache) Put(key string, b Backup) {
	c.mu.Lock()
	c.m[key] = b
	c.mu.Unlock()
}

// Take returns and removes the backup for key; a backup hydrates at most once.
func (c *BackupCache) Take(key string) (Backup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	if ok {
		delete(c.m, key)
	}
	return b, ok
}

func (c *BackupCache) Clear(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}
