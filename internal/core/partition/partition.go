package partition

import "hash/fnv"

// Count is the fixed number of lock shards.
const Count = 256

// For returns the shard for a lock key.
// Stable and deterministic: same key always maps to the same shard.
// FNV-32a.
func For(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % Count)
}

// LockID maps a lock key onto the signed 64-bit id space of Postgres
// advisory locks. Distinct keys may collide; a collision only serializes
// two unrelated keys.
func LockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
