package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/amase-cc/apremind/ap"
	"github.com/amase-cc/apremind/apclient"
	"github.com/amase-cc/apremind/keys"
	apmiddleware "github.com/amase-cc/apremind/middleware"
	"github.com/amase-cc/apremind/scheduler"
	"github.com/amase-cc/apremind/store"
	"github.com/amase-cc/apremind/util"
)

var (
	version      = "unknown"
	buildMachine = "unknown"
	buildTime    = "unknown"
	goVersion    = "unknown"
)

func main() {
	e := echo.New()

	configPaths := []string{}
	configPath := os.Getenv("APREMIND_CONFIG")
	if configPath != "" {
		configPaths = append(configPaths, configPath)
	}

	additionalConfigs := os.Getenv("APREMIND_CONFIGS")
	if additionalConfigs != "" {
		for v := range strings.SplitSeq(additionalConfigs, ":") {
			configPaths = append(configPaths, v)
		}
	}

	if len(configPaths) == 0 {
		configPaths = append(configPaths, "/etc/apremind/config.yaml")
	}

	config, err := util.LoadMultipleYamlFiles[Config](configPaths)
	if err != nil {
		slog.Error("Failed to load config: ", slog.String("error", err.Error()))
		panic(err)
	}

	if config.ApConfig.KeyPath == "" {
		config.ApConfig.KeyPath = "private_key.pem"
	}
	if config.ApConfig.Username == "" {
		config.ApConfig.Username = "reminder"
	}
	if config.ApConfig.ActorName == "" {
		config.ApConfig.ActorName = "Reminder Bot"
	}
	if config.ApConfig.Summary == "" {
		config.ApConfig.Summary = "A bot that sends you reminders. Mention me like: @" + config.ApConfig.Username + " 5m Check the oven"
	}

	slog.Info(fmt.Sprintf("ApRemind %s starting...", version))
	slog.Info(fmt.Sprintf("ApConfig loaded! Actor: %s", config.ApConfig.ActorID()))

	config.NodeInfo.Version = "2.0"
	config.NodeInfo.Software.Name = "apremind"
	config.NodeInfo.Software.Version = version
	config.NodeInfo.Protocols = []string{"activitypub"}

	e.HidePort = true
	e.HideBanner = true

	if config.Server.EnableTrace {
		skipper := otelecho.WithSkipper(
			func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/health"
			},
		)
		e.Use(otelecho.Middleware(config.ApConfig.FQDN, skipper))
	}

	e.Use(echoprometheus.NewMiddleware("apremind"))
	e.Use(echomiddleware.Recover())

	e.Binder = &apmiddleware.Binder{}

	keyManager, err := keys.LoadOrCreate(config.ApConfig.KeyPath, config.ApConfig.ActorID(), config.ApConfig.KeyID())
	if err != nil {
		slog.Error("Failed to load signing key: ", slog.String("error", err.Error()))
		panic(err)
	}

	publicKeyPem, err := keyManager.PublicKeyPem()
	if err != nil {
		slog.Error("Failed to export public key: ", slog.String("error", err.Error()))
		panic(err)
	}

	mc := memcache.New(config.Server.MemcachedAddr)
	defer mc.Close()

	activityStore := store.NewStore()
	responseCache := store.NewCache(activityStore)
	client := apclient.NewApClient(mc)

	deliveryScheduler := scheduler.NewScheduler(client, keyManager, activityStore, config.ApConfig)

	apService := ap.NewService(
		activityStore,
		responseCache,
		client,
		keyManager,
		deliveryScheduler,
		config.NodeInfo,
		config.ApConfig,
		publicKeyPem,
	)

	apHandler := ap.NewHandler(apService)

	e.GET("/.well-known/host-meta", apHandler.HostMeta)
	e.GET("/.well-known/webfinger", apHandler.WebFinger)
	e.GET("/.well-known/nodeinfo", apHandler.NodeInfoWellKnown)
	e.GET("/nodeinfo/2.0", apHandler.NodeInfo)

	e.GET("/actor", apHandler.Actor)
	e.GET("/outbox", apHandler.Outbox)
	e.GET("/notes/:id", apHandler.Note)
	e.GET("/creates/:id", apHandler.Create)

	if config.Server.DisableSignatureCheck {
		e.POST("/inbox", apHandler.Inbox)
	} else {
		e.POST("/inbox", apHandler.Inbox, apmiddleware.VerifySignature(client, keyManager, config.ApConfig))
	}

	e.GET("/health", func(c echo.Context) (err error) {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/metrics", echoprometheus.NewHandler())

	port := ":8000"
	envport := os.Getenv("APREMIND_PORT")
	if envport != "" {
		port = ":" + envport
	}

	e.Logger.Fatal(e.Start(port))
}
