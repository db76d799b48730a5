package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rngallery/rngallery/internal/api"
	"github.com/rngallery/rngallery/internal/auth"
	"github.com/rngallery/rngallery/internal/database"
	"github.com/rngallery/rngallery/internal/gallery"
	"github.com/rngallery/rngallery/internal/github"
	"github.com/rngallery/rngallery/internal/notify"
	"github.com/rngallery/rngallery/internal/playback"
	"github.com/rngallery/rngallery/internal/server"
	slackpkg "github.com/rngallery/rngallery/internal/slack"
	"github.com/rngallery/rngallery/internal/storage"
	"github.com/rngallery/rngallery/internal/upload"
	"github.com/rngallery/rngallery/internal/validate"
	webhookpkg "github.com/rngallery/rngallery/internal/webhook"
)

func main() {
	port := getEnv("PORT", "8080")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		log.Fatal("API_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(databaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Println("database migrations applied")

	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", validate.MaxUploadBytes)

	apiClient := api.New(api.Config{
		BaseURL:       apiURL,
		EncoderURL:    getEnv("ENCODER_URL", "https://api.gfycat.com/v1"),
		FiledropURL:   getEnv("FILEDROP_URL", "https://filedrop.gfycat.com"),
		Timeout:       getEnvDuration("API_TIMEOUT", 30*time.Second),
		UploadTimeout: getEnvDuration("UPLOAD_TIMEOUT", 10*time.Minute),
	})

	collaborators := func(token string) upload.Collaborators { return apiClient.WithToken(token) }
	if getEnv("UPLOAD_TRANSPORT", "filedrop") == "s3" {
		store, err := storage.New(ctx, storage.Config{
			Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
			Bucket:         getEnv("S3_BUCKET", "filedrop"),
			Prefix:         os.Getenv("S3_PREFIX"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
			MaxUploadBytes: maxUploadBytes,
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		collaborators = func(token string) upload.Collaborators {
			return storage.NewFiledropTransfer(apiClient.WithToken(token), store)
		}
		log.Println("uploads go to the s3 filedrop bucket")
	}

	webhookURL := os.Getenv("UPLOAD_WEBHOOK_URL")
	var webhookNotifier upload.Notifier
	if webhookURL != "" {
		webhookNotifier = webhookpkg.NewNotifier(webhookpkg.New(db.Pool), webhookURL, os.Getenv("UPLOAD_WEBHOOK_SECRET"))
	}
	var slackNotifier upload.Notifier
	if slackURL := os.Getenv("SLACK_WEBHOOK_URL"); slackURL != "" {
		slackNotifier = slackpkg.New(slackURL)
	}
	notifier := notify.NewMultiUploadNotifier(webhookNotifier, slackNotifier)
	if notifier.Len() > 0 {
		log.Printf("upload notifications enabled (%d receivers)", notifier.Len())
	}

	uploadStore := upload.NewStore(db.Pool)
	manager := upload.NewManager(upload.ManagerConfig{
		Collaborators: collaborators,
		Store:         uploadStore,
		Notifier:      notifier,
		Options: upload.Options{
			PollInterval:  getEnvDuration("UPLOAD_POLL_INTERVAL", 7*time.Second),
			CallTimeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			UploadTimeout: getEnvDuration("UPLOAD_TIMEOUT", 10*time.Minute),
			MaxAttempts:   int(getEnvInt64("UPLOAD_MAX_ATTEMPTS", 3)),
		},
		Retention: getEnvDuration("UPLOAD_RETENTION", 15*time.Minute),
	})

	baseURL := getEnv("BASE_URL", "http://localhost:8080")
	site := siteFromEnv(baseURL)
	stars := github.New(github.Config{
		BaseURL:  getEnv("GITHUB_API_URL", "https://api.github.com"),
		Token:    os.Getenv("GITHUB_TOKEN"),
		CacheTTL: getEnvDuration("GITHUB_CACHE_TTL", 10*time.Minute),
	})
	composer := gallery.NewComposer(func(token string) gallery.Backend { return apiClient.WithToken(token) }, stars, site)

	srv := server.New(server.Config{
		Pinger:                db,
		BaseURL:               baseURL,
		Auth:                  auth.New(jwtSecret),
		Gallery:               gallery.NewHandler(composer),
		Uploads:               upload.NewHandler(manager, uploadStore, maxUploadBytes, os.Getenv("UPLOAD_TEMP_DIR")),
		MediaHosts:            mediaHosts(site.MediaBase, site.PosterBase, site.ThumbsBase),
		AllowedFrameAncestors: os.Getenv("ALLOWED_FRAME_ANCESTORS"),
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("rngallery listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	manager.Close()
	log.Println("shutdown complete")
}

func siteFromEnv(baseURL string) gallery.Site {
	return gallery.Site{
		Name:               getEnv("SITE_NAME", "React Native Gallery"),
		Website:            getEnv("SITE_URL", baseURL),
		Description:        getEnv("SITE_DESCRIPTION", "A gallery of React Native components, animations and interactions"),
		Keywords:           splitList(getEnv("SITE_KEYWORDS", "react-native,gallery,components,animation")),
		TwitterSite:        getEnv("TWITTER_SITE", "@rn_gallery"),
		ThumbsBase:         getEnv("THUMBS_BASE", playback.DefaultPosterBase),
		ThumbsBaseUnsecure: getEnv("THUMBS_BASE_UNSECURE", "http://thumbs.gfycat.com/"),
		MediaBase:          getEnv("MEDIA_BASE", playback.DefaultMediaBase),
		PosterBase:         getEnv("POSTER_BASE", playback.DefaultPosterBase),
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// mediaHosts reduces media base URLs to distinct origins for the CSP.
func mediaHosts(bases ...string) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, base := range bases {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		if !seen[origin] {
			seen[origin] = true
			hosts = append(hosts, origin)
		}
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
