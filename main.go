package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/api"
	"taskboard-api/domain"
	"taskboard-api/storage"
	"taskboard-api/stream"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	logger := log.New()

	store, err := storage.NewStore(dataDir)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	activity, err := storage.OpenActivityLog(dataDir, logger)
	if err != nil {
		log.Fatalf("activity log: %v", err)
	}
	notifications, err := storage.OpenNotificationQueue(dataDir, logger)
	if err != nil {
		log.Fatalf("notification queue: %v", err)
	}
	contacts, err := storage.OpenContactLog(dataDir)
	if err != nil {
		log.Fatalf("contact log: %v", err)
	}

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		rc = redis.NewClient(redisOpts)
	}
	cacheTTL := 30 * time.Second
	if v := os.Getenv("SNAPSHOT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			log.Fatalf("invalid SNAPSHOT_CACHE_TTL: %v", err)
		}
		cacheTTL = d
	}
	board := storage.NewCache(store, rc, cacheTTL)

	broker := stream.NewBroker(logger)
	engine := domain.NewEngine(board, activity, notifications, broker, domain.EngineConfig{
		AutomationUser: os.Getenv("AUTOMATION_USER"),
		Reviewer:       os.Getenv("REVIEWER"),
		Logger:         logger,
	})

	users := parseUsers(os.Getenv("BOARD_USERS"))
	if len(users) == 0 {
		log.Fatal("missing BOARD_USERS config")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, api.Config{
		Board:         board,
		Engine:        engine,
		Activity:      activity,
		Notifications: notifications,
		Contacts:      contacts,
		Broker:        broker,
		Users:         users,
		StaticDir:     os.Getenv("STATIC_DIR"),
		Logger:        logger,
	})

	listenAddr := ":3333"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// parseUsers reads "user:password" pairs separated by commas.
func parseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			log.Fatalf("invalid BOARD_USERS entry %q", pair)
		}
		users[kv[0]] = kv[1]
	}
	return users
}
