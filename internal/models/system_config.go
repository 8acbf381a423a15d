package models

// SystemConfig stores key-value runtime settings editable without a restart.
type SystemConfig struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Key   string `gorm:"uniqueIndex;size:100;not null" json:"key"`
	Value string `gorm:"size:500" json:"value"`
	Type  string `gorm:"size:20" json:"type"` // string, int, bool
	Label string `gorm:"size:200" json:"label"`
}

func (SystemConfig) TableName() string { return "system_configs" }
