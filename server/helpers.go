package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/everkeep/everkeep/server/auth"
	"github.com/everkeep/everkeep/server/models"
	"github.com/everkeep/everkeep/server/work"
	"github.com/everkeep/everkeep/shared"
	"github.com/everkeep/everkeep/utils"
	"github.com/go-playground/validator"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

// writeDomainError translates the error taxonomy of the models package
// into http responses. The three conflict causes keep their distinct
// messages - callers rely on them to decide whether to retry.
func writeDomainError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		writeResponse(rw, ResponsePayload{Errors: []string{"record not found"}}, http.StatusNotFound)
	case errors.Is(err, models.ErrGuardianNotOwned):
		writeResponse(rw, ResponsePayload{Errors: []string{"Guardian belongs to a different user."}}, http.StatusForbidden)
	case errors.Is(err, models.ErrPriorityInUse):
		writeResponse(rw, ResponsePayload{Errors: []string{"Priority already in use."}}, http.StatusConflict)
	case errors.Is(err, models.ErrGuardianAlreadyAssigned):
		writeResponse(rw, ResponsePayload{Errors: []string{"Guardian is already assigned."}}, http.StatusConflict)
	case errors.Is(err, models.ErrDuplicateGuardianEmail):
		writeResponse(rw, ResponsePayload{Errors: []string{"Guardian with this email already exists."}}, http.StatusConflict)
	case errors.Is(err, models.ErrDuplicateUserEmail):
		writeResponse(rw, ResponsePayload{Errors: []string{"User with this email already exists."}}, http.StatusConflict)
	case errors.Is(err, models.ErrHeartbeatSettingExists):
		writeResponse(rw, ResponsePayload{Errors: []string{"Heartbeat settings already exist."}}, http.StatusConflict)
	case errors.Is(err, models.ErrHeartbeatProtocolInactive):
		writeResponse(rw, ResponsePayload{Errors: []string{"Heartbeat protocol is not active."}}, http.StatusBadRequest)
	default:
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
	}
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}

func parseNotificationChannels(value interface{}) (models.ChannelList, string) {
	values, ok := value.([]interface{})
	if !ok {
		return nil, "notificationChannels must be an array"
	}

	channels := models.ChannelList{}
	for _, v := range values {
		name, ok := v.(string)
		if !ok || !models.NotificationChannelNameMap[name] {
			return nil, fmt.Sprintf("unrecognized notification channel: %v", v)
		}
		channels = append(channels, name)
	}

	return channels, ""
}

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		// whitespace in passwords is not allowed
		err := validate.Var(fl.Field().String(), "contains= ")
		if err == nil {
			return false
		}
		return len(fl.Field().String()) > 0
	})
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

func decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the user account still exists
	_, err = models.FindUserBy("id", tokenClaims.Subject)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

// currentUserID returns the caller identity resolved by the middleware
// chain. Only reachable behind protectedRouteMiddleware.
func currentUserID(r *http.Request) string {
	decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
	return decodedJWT.Claims.Subject
}

func currentUserIDAsUint(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(currentUserID(r), 10, 64)
	return uint(id), err
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func validatedServerConfig(config *viper.Viper) (*shared.ServerConfig, error) {
	serverConfig := &shared.ServerConfig{}

	if err := config.Unmarshal(serverConfig); err != nil {
		return nil, errors.Wrap(err, "unable to decode server config")
	}

	if err := validate.Struct(serverConfig); err != nil {
		return nil, errors.Wrap(err, "invalid server config")
	}

	return serverConfig, nil
}

func serve(server *http.Server) {
	logg.Infof("Everkeep server is listening on port:%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(workerPool *work.WorkerPoolAdapter, server *http.Server, backupDb bool) {
	workerPool.Stop()

	if backupDb {
		if err := backupSqliteDb(nil); err != nil {
			logg.Error(err)
		}
	}

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Everkeep server shutdown failed:%+s", err)
	}

	logg.Infof("Everkeep server stopped properly")
}

// configDirectory retrieves the directory everkeep keeps its db & configs in,
// or exits if it can't be created.
func configDirectory(devMode bool) string {
	configFolderName := "everkeep"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
