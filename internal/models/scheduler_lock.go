package models

import "time"

// SchedulerLock backs the database lock store used when Redis is disabled.
// One row per lock key; ownership is proven by OwnerToken.
type SchedulerLock struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LockKey    string    `gorm:"uniqueIndex;size:200;not null" json:"lock_key"`
	OwnerToken string    `gorm:"size:100;not null" json:"owner_token"`
	LockedAt   time.Time `json:"locked_at"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
}

func (SchedulerLock) TableName() string { return "scheduler_locks" }
