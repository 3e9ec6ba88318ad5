package models

import "fmt"

// EscalationLink ranks a guardian in the owner's escalation chain.
// Both unique indexes are load-bearing: they are what makes concurrent
// assigns race-safe, so conflicts must come from the insert itself,
// never from a read-then-insert check.
type EscalationLink struct {
	BaseModel
	HeartbeatSettingID uint `json:"heartbeatSettingId" gorm:"not null;uniqueIndex:idx_chain_member;uniqueIndex:idx_chain_priority"`
	GuardianID         uint `json:"guardianId" gorm:"not null;uniqueIndex:idx_chain_member"`
	Priority           int  `json:"priority" gorm:"not null;uniqueIndex:idx_chain_priority"`
}

// EscalationContact is the chain view handed to consumers - contact rank
// plus the fields a notifier needs, nothing else.
type EscalationContact struct {
	Priority int                  `json:"priority"`
	Guardian EscalationContactRef `json:"guardian"`
}

type EscalationContactRef struct {
	ID           uint   `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Relationship string `json:"relationship"`
}

// AssignEscalationGuardian places a guardian at the given rank in the
// caller's escalation chain. The guardian id was supplied directly by the
// caller, so "exists but not yours" is surfaced as its own error here
// instead of being folded into not-found.
func AssignEscalationGuardian(userID, guardianID interface{}, priority int) error {
	setting, err := FindHeartbeatSetting(userID)
	if err != nil {
		return err
	}

	guardian := Guardian{}
	if err := db.First(&guardian, "id = ?", guardianID).Error; err != nil {
		return err
	}

	if fmt.Sprint(guardian.UserID) != fmt.Sprint(userID) {
		return ErrGuardianNotOwned
	}

	err = db.Create(&EscalationLink{
		HeartbeatSettingID: setting.ID,
		GuardianID:         guardian.ID,
		Priority:           priority,
	}).Error

	// The two conflict causes are semantically distinct - callers retry a
	// taken priority with a new rank, but stop on a duplicate guardian.
	switch {
	case isUniqueConstraintViolation(err, "escalation_links.guardian_id"):
		return ErrGuardianAlreadyAssigned
	case isUniqueConstraintViolation(err, "escalation_links.priority"):
		return ErrPriorityInUse
	}

	return err
}

// RemoveEscalationGuardian drops a guardian from the caller's chain.
// Removing a non-member is success, so retrying callers are safe.
func RemoveEscalationGuardian(userID, guardianID interface{}) error {
	setting, err := FindHeartbeatSetting(userID)
	if err != nil {
		return err
	}

	return db.Where("heartbeat_setting_id = ? AND guardian_id = ?", setting.ID, guardianID).
		Delete(&EscalationLink{}).Error
}

// EscalationChain returns the caller's guardians joined with their contact
// fields, ordered ascending by priority. Position = contact rank is a hard
// contract for consumers.
func EscalationChain(userID interface{}) ([]EscalationContact, error) {
	setting, err := FindHeartbeatSetting(userID)
	if err != nil {
		return nil, err
	}

	rows := []struct {
		Priority     int
		GuardianID   uint
		FirstName    string
		LastName     string
		Email        string
		Relationship string
	}{}

	err = db.Table("escalation_links").
		Select("escalation_links.priority, guardians.id AS guardian_id, guardians.first_name, guardians.last_name, guardians.email, guardians.relationship").
		Joins("INNER JOIN guardians ON guardians.id = escalation_links.guardian_id").
		Where("escalation_links.heartbeat_setting_id = ?", setting.ID).
		Order("escalation_links.priority asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	chain := []EscalationContact{}
	for _, row := range rows {
		chain = append(chain, EscalationContact{
			Priority: row.Priority,
			Guardian: EscalationContactRef{
				ID:           row.GuardianID,
				FirstName:    row.FirstName,
				LastName:     row.LastName,
				Email:        row.Email,
				Relationship: row.Relationship,
			},
		})
	}

	return chain, nil
}
