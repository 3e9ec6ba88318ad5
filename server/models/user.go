package models

import (
	"fmt"

	"github.com/everkeep/everkeep/server/auth"
)

var allUserFieldsExceptPassword = []string{"id", "email", "created_at", "updated_at"}

type User struct {
	BaseModel
	Email            string            `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password         string            `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	HeartbeatSetting *HeartbeatSetting `json:"heartbeatSetting,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Guardians        []Guardian        `json:"guardians,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// CreateUser registers a new user & seeds their default heartbeat settings.
// Monitoring starts disabled; the user has to opt in explicitly. Both rows
// are written in one create, so a failed registration leaves nothing behind.
func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	// caller-supplied associations never survive registration
	user.HeartbeatSetting = defaultHeartbeatSetting()
	user.Guardians = nil

	err = db.Create(user).Error
	if isUniqueConstraintViolation(err, "users.email") {
		return ErrDuplicateUserEmail
	}

	return err
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allUserFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error
	if err != nil {
		return "", err
	}

	return user.Password, nil
}
