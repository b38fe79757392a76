package model

import "time"

// KeyRecord represents a single license key and its usage statistics.
type KeyRecord struct {
	Key         string     `json:"key"`
	Description string     `json:"description"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
	UsageCount  int64      `json:"usageCount"`
}

// NewKeyRecord returns an active record with no usage, created now.
func NewKeyRecord(key, description string) KeyRecord {
	return KeyRecord{
		Key:         key,
		Description: description,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
}

// Clone returns a deep copy of the record.
func (r KeyRecord) Clone() KeyRecord {
	if r.LastUsed != nil {
		t := *r.LastUsed
		r.LastUsed = &t
	}
	return r
}

// KeySuffix returns the last 4 characters of a key, or the full key if it's shorter.
func KeySuffix(key string) string {
	if len(key) > 4 {
		return key[len(key)-4:]
	}
	return key
}
