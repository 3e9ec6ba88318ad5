package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/everkeep/everkeep/server/auth"
	"github.com/everkeep/everkeep/server/auth/key"
	"github.com/everkeep/everkeep/server/models"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type registerParams struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type assignGuardianParams struct {
	GuardianID uint `json:"guardianId" validate:"required"`
	Priority   int  `json:"priority" validate:"required,min=1"`
}

var updatableSettingsFields = map[string]bool{
	"heartbeatIntervalDays": true,
	"isActive":              true,
	"notificationChannels":  true,
}

var updatableGuardianFields = map[string]bool{
	"firstName":    true,
	"lastName":     true,
	"email":        true,
	"phone":        true,
	"relationship": true,
}

func healthCheck(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
}

func jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

// ---------------------------------------------------------------------------------//
// Auth handlers
// --------------------------------------------------------------------------------//

func register(rw http.ResponseWriter, r *http.Request) {
	data := registerParams{}

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := validate.Struct(data); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	// Registration also seeds the user's default heartbeat settings,
	// monitoring disabled until they opt in. Only the credentials come
	// from the payload.
	user := models.User{Email: data.Email, Password: data.Password}
	if err := models.CreateUser(&user); err != nil {
		writeDomainError(rw, err)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusCreated)
}

func logIn(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	json.NewDecoder(r.Body).Decode(&data)

	passwordHash, err := models.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPasswordHash(data["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", data["email"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(auth.EverkeepTokenClaims{
		Email: user.Email,
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
		},
	}, authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(map[string]string{"access_token": token})
}

// ---------------------------------------------------------------------------------//
// Heartbeat settings handlers
// --------------------------------------------------------------------------------//

func findUserSettings(rw http.ResponseWriter, r *http.Request) {
	setting, err := models.FindHeartbeatSetting(currentUserID(r))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	json.NewEncoder(rw).Encode(setting)
}

func updateUserSettings(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, updatableSettingsFields)
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	update := make(map[string]interface{})

	if v, ok := data["heartbeatIntervalDays"]; ok {
		days, ok := v.(float64)
		if !ok || days != math.Trunc(days) ||
			days < models.MIN_HEARTBEAT_INTERVAL_DAYS || days > models.MAX_HEARTBEAT_INTERVAL_DAYS {
			writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf(
				"heartbeatIntervalDays must be a whole number between %v and %v",
				models.MIN_HEARTBEAT_INTERVAL_DAYS, models.MAX_HEARTBEAT_INTERVAL_DAYS)}}, http.StatusBadRequest)
			return
		}
		update["interval_days"] = int(days)
	}

	if v, ok := data["isActive"]; ok {
		active, ok := v.(bool)
		if !ok {
			writeResponse(rw, ResponsePayload{Errors: []string{"isActive must be a boolean"}}, http.StatusBadRequest)
			return
		}
		update["active"] = active
	}

	if v, ok := data["notificationChannels"]; ok {
		channels, errMsg := parseNotificationChannels(v)
		if errMsg != "" {
			writeResponse(rw, ResponsePayload{Errors: []string{errMsg}}, http.StatusBadRequest)
			return
		}
		update["channels"] = channels
	}

	setting, err := models.UpdateHeartbeatSetting(currentUserID(r), update)
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	json.NewEncoder(rw).Encode(setting)
}

func recordHeartbeat(rw http.ResponseWriter, r *http.Request) {
	if err := models.RecordHeartbeat(currentUserID(r)); err != nil {
		writeDomainError(rw, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------------//
// Escalation chain handlers
// --------------------------------------------------------------------------------//

func listEscalationGuardians(rw http.ResponseWriter, r *http.Request) {
	chain, err := models.EscalationChain(currentUserID(r))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	json.NewEncoder(rw).Encode(chain)
}

func assignEscalationGuardian(rw http.ResponseWriter, r *http.Request) {
	params := assignGuardianParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := validate.Struct(params); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	err = models.AssignEscalationGuardian(currentUserID(r), params.GuardianID, params.Priority)
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func removeEscalationGuardian(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	err := models.RemoveEscalationGuardian(currentUserID(r), vars["guardianId"])
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------------//
// Guardian handlers
// --------------------------------------------------------------------------------//

func createGuardian(rw http.ResponseWriter, r *http.Request) {
	userID, err := currentUserIDAsUint(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	guardian := models.Guardian{}
	if err := json.NewDecoder(r.Body).Decode(&guardian); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	// caller identity wins over anything in the payload
	guardian.ID = 0
	guardian.UserID = userID

	if errs := validate.Struct(guardian); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	if err := models.CreateGuardian(&guardian); err != nil {
		writeDomainError(rw, err)
		return
	}

	rw.WriteHeader(http.StatusCreated)
	json.NewEncoder(rw).Encode(guardian)
}

func listGuardians(rw http.ResponseWriter, r *http.Request) {
	guardians, err := models.GuardiansFor(currentUserID(r))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	json.NewEncoder(rw).Encode(guardians)
}

func findGuardian(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	guardian, err := models.FindGuardian(vars["id"], currentUserID(r))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	json.NewEncoder(rw).Encode(guardian)
}

func updateGuardian(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, updatableGuardianFields)
	if len(data) <= 0 {
		writeResponse(rw, ResponsePayload{Errors: []string{"valid fields required"}}, http.StatusBadRequest)
		return
	}

	if v, ok := data["email"]; ok {
		if err := validate.Var(fmt.Sprint(v), "required,email"); err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{"email is invalid"}}, http.StatusBadRequest)
			return
		}
	}

	if v, ok := data["phone"]; ok {
		if err := validate.Var(fmt.Sprint(v), "omitempty,e164"); err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{"phone is invalid"}}, http.StatusBadRequest)
			return
		}
	}

	update := make(map[string]interface{})
	for field, column := range map[string]string{
		"firstName":    "first_name",
		"lastName":     "last_name",
		"email":        "email",
		"phone":        "phone",
		"relationship": "relationship",
	} {
		if v, ok := data[field]; ok {
			update[column] = v
		}
	}

	if err := models.UpdateGuardian(vars["id"], currentUserID(r), update); err != nil {
		writeDomainError(rw, err)
		return
	}

	guardian, err := models.FindGuardian(vars["id"], currentUserID(r))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	json.NewEncoder(rw).Encode(guardian)
}

func deleteGuardian(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := models.DeleteGuardian(vars["id"], currentUserID(r)); err != nil {
		writeDomainError(rw, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}
