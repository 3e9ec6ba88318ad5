package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/everkeep/everkeep/server/auth"
	"github.com/everkeep/everkeep/server/auth/key"
	"github.com/everkeep/everkeep/server/logger"
	"github.com/everkeep/everkeep/server/models"
	"github.com/everkeep/everkeep/server/work"
	"github.com/everkeep/everkeep/shared"
	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/spf13/viper"
)

type RequestContextKey string

type DecodedJWT struct {
	Claims   *auth.EverkeepTokenClaims
	ErrorMsg string
}

var (
	logg        = logger.NewLogger()
	validate    = validator.New()
	authKeyPair *key.KeyPair

	serverConfig *shared.ServerConfig
	appConfigDir string
)

func init() {
	if err := RegisterValidators(validate); err != nil {
		logg.Fatal(err)
	}
}

// Start brings up the everkeep server: encrypted db, background workers
// & the http listener. Blocks until SIGINT/SIGTERM.
func Start(config *viper.Viper, devMode bool) {
	var err error

	serverConfig, err = validatedServerConfig(config)
	fatalOnError(err)

	authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Everkeep.PrivateKeyPem)
	fatalOnError(err)

	appConfigDir = configDirectory(devMode)
	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, appConfigDir))

	workerPool := work.NewWorkerAdapter(serverConfig.Everkeep.Cron.TimeZone)
	registerJobHandlers(workerPool)
	enqueueJobs(workerPool)
	workerPool.Start()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Everkeep.Listener.Port),
		Handler: NewRouter(),
	}
	go serve(httpServer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cleanup(workerPool, httpServer, sqliteBackupEnabled())
}

// NewRouter registers every route behind the middleware chain. All
// /user-settings & /guardians routes require a resolved caller identity.
func NewRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)
	router.Use(initialContextMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/.well-known/jwks.json", jwks).Methods("GET")
	router.HandleFunc("/auth/register", register).Methods("POST")
	router.HandleFunc("/auth/login", logIn).Methods("POST")

	protected := router.NewRoute().Subrouter()
	protected.Use(protectedRouteMiddleware)

	protected.HandleFunc("/user-settings", findUserSettings).Methods("GET")
	protected.HandleFunc("/user-settings", updateUserSettings).Methods("PATCH")
	protected.HandleFunc("/user-settings/heartbeat", recordHeartbeat).Methods("POST")

	protected.HandleFunc("/user-settings/heartbeat-guardians", listEscalationGuardians).Methods("GET")
	protected.HandleFunc("/user-settings/heartbeat-guardians", assignEscalationGuardian).Methods("POST")
	protected.HandleFunc("/user-settings/heartbeat-guardians/{guardianId}", removeEscalationGuardian).Methods("DELETE")

	protected.HandleFunc("/guardians", createGuardian).Methods("POST")
	protected.HandleFunc("/guardians", listGuardians).Methods("GET")
	protected.HandleFunc("/guardians/{id}", findGuardian).Methods("GET")
	protected.HandleFunc("/guardians/{id}", updateGuardian).Methods("PATCH")
	protected.HandleFunc("/guardians/{id}", deleteGuardian).Methods("DELETE")

	return router
}
