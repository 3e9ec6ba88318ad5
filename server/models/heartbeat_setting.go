package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DEFAULT_HEARTBEAT_INTERVAL_DAYS = 30
	MIN_HEARTBEAT_INTERVAL_DAYS     = 7
	MAX_HEARTBEAT_INTERVAL_DAYS     = 365

	EMAIL_CHANNEL = "email"
)

var NotificationChannelNameMap = map[string]bool{
	EMAIL_CHANNEL: true,
}

// ChannelList is the set of notification channels, stored as a single
// text column since sqlite has no array type.
type ChannelList []string

func (cl ChannelList) Value() (driver.Value, error) {
	encoded, err := json.Marshal(cl)
	return string(encoded), err
}

func (cl *ChannelList) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		return json.Unmarshal([]byte(v), cl)
	case []byte:
		return json.Unmarshal(v, cl)
	}

	return fmt.Errorf("unable to scan %T into ChannelList", value)
}

// HeartbeatSetting holds a user's dead-man's-switch configuration.
// Exactly one row exists per user, created at registration time.
type HeartbeatSetting struct {
	BaseModel
	UserID          uint             `json:"userId" gorm:"not null;unique"`
	IntervalDays    int              `json:"heartbeatIntervalDays" gorm:"not null;default:30"`
	Active          bool             `json:"isActive" gorm:"default:false"`
	LastHeartbeatAt *time.Time       `json:"lastHeartbeatAt"`
	Channels        ChannelList      `json:"notificationChannels" gorm:"type:text;not null"`
	EscalationLinks []EscalationLink `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func defaultHeartbeatSetting() *HeartbeatSetting {
	return &HeartbeatSetting{
		IntervalDays: DEFAULT_HEARTBEAT_INTERVAL_DAYS,
		Active:       false,
		Channels:     ChannelList{EMAIL_CHANNEL},
	}
}

// CreateDefaultHeartbeatSetting seeds the settings row for a user that is
// somehow missing one. Calling it twice for the same user fails - the unique
// index on user_id is the source of truth, never a prior read.
func CreateDefaultHeartbeatSetting(userID uint) (*HeartbeatSetting, error) {
	setting := defaultHeartbeatSetting()
	setting.UserID = userID

	err := db.Create(setting).Error
	if isUniqueConstraintViolation(err, "heartbeat_settings.user_id") {
		return nil, ErrHeartbeatSettingExists
	}
	if err != nil {
		return nil, err
	}

	return setting, nil
}

func FindHeartbeatSetting(userID interface{}) (*HeartbeatSetting, error) {
	setting := HeartbeatSetting{}
	err := db.First(&setting, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return &setting, nil
}

// UpdateHeartbeatSetting merges the given column values into the user's
// settings row & returns the updated record. Value validation happens at
// the handler boundary.
func UpdateHeartbeatSetting(userID interface{}, data map[string]interface{}) (*HeartbeatSetting, error) {
	if _, err := FindHeartbeatSetting(userID); err != nil {
		return nil, err
	}

	err := db.Model(&HeartbeatSetting{}).Where("user_id = ?", userID).Updates(data).Error
	if err != nil {
		return nil, err
	}

	return FindHeartbeatSetting(userID)
}

// RecordHeartbeat stores a proof-of-life timestamp for the user.
// A heartbeat against an inactive protocol is a caller error, not a no-op.
func RecordHeartbeat(userID interface{}) error {
	setting, err := FindHeartbeatSetting(userID)
	if err != nil {
		return err
	}

	if !setting.Active {
		return ErrHeartbeatProtocolInactive
	}

	return db.Model(&HeartbeatSetting{}).
		Where("id = ?", setting.ID).
		Update("last_heartbeat_at", time.Now()).Error
}
