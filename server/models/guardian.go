package models

import "gorm.io/gorm"

// Guardian is a trusted contact eligible to be notified when the
// owning user goes quiet for too long.
type Guardian struct {
	BaseModel
	FirstName       string           `json:"firstName" validate:"required" gorm:"not null"`
	LastName        string           `json:"lastName" validate:"required" gorm:"not null"`
	Email           string           `json:"email" validate:"required,email" gorm:"not null;uniqueIndex:idx_owner_guardian_email"`
	Phone           string           `json:"phone,omitempty" validate:"omitempty,e164"`
	Relationship    string           `json:"relationship" validate:"required" gorm:"not null"`
	UserID          uint             `json:"ownerUserId" gorm:"not null;uniqueIndex:idx_owner_guardian_email"`
	EscalationLinks []EscalationLink `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

var updatableGuardianFields = []string{"first_name", "last_name", "email", "phone", "relationship"}

func CreateGuardian(guardian *Guardian) error {
	err := db.Create(guardian).Error
	if isUniqueConstraintViolation(err, "guardians.email") {
		return ErrDuplicateGuardianEmail
	}

	return err
}

// FindGuardian resolves a guardian by id, scoped to its owner. A guardian
// owned by someone else is indistinguishable from a missing one, so record
// existence is never leaked across users.
func FindGuardian(id, ownerUserID interface{}) (*Guardian, error) {
	guardian := Guardian{}
	err := db.First(&guardian, "id = ? AND user_id = ?", id, ownerUserID).Error
	if err != nil {
		return nil, err
	}

	return &guardian, nil
}

func GuardiansFor(ownerUserID interface{}) ([]Guardian, error) {
	guardians := []Guardian{}
	err := db.Order("id asc").Find(&guardians, "user_id = ?", ownerUserID).Error
	if err != nil {
		return nil, err
	}

	return guardians, nil
}

func UpdateGuardian(id, ownerUserID interface{}, data map[string]interface{}) error {
	res := db.Model(&Guardian{}).
		Where("id = ? AND user_id = ?", id, ownerUserID).
		Select(updatableGuardianFields).
		Updates(data)

	if isUniqueConstraintViolation(res.Error, "guardians.email") {
		return ErrDuplicateGuardianEmail
	}
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// DeleteGuardian removes a guardian & any escalation links referencing it,
// in one transaction.
func DeleteGuardian(id, ownerUserID interface{}) error {
	return db.Transaction(func(tx *gorm.DB) error {
		guardian := Guardian{}
		if err := tx.First(&guardian, "id = ? AND user_id = ?", id, ownerUserID).Error; err != nil {
			return err
		}

		if err := tx.Where("guardian_id = ?", guardian.ID).Delete(&EscalationLink{}).Error; err != nil {
			return err
		}

		return tx.Delete(&guardian).Error
	})
}
