package models

import "gorm.io/gorm"

// SystemSetting keys used by the pipeline.
const (
	SettingRotationCursor  = "sender_rotation_cursor"
	SettingLastHealthCheck = "last_sender_health_check"
)

// SystemSetting stores operational cursors (rotation position, last
// health-check time). Business configuration lives in config.Config.
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"not null;uniqueIndex" json:"key"`
	Value string `json:"value"`
}
