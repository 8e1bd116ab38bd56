package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ButyrinIA/comet/internal/config"
	"github.com/ButyrinIA/comet/internal/endorse"
	"github.com/ButyrinIA/comet/internal/feed"
	"github.com/ButyrinIA/comet/internal/graphql"
	"github.com/ButyrinIA/comet/internal/logger"
	"github.com/ButyrinIA/comet/internal/models"
	"github.com/ButyrinIA/comet/internal/personalize"
	"github.com/ButyrinIA/comet/internal/posting"
	"github.com/ButyrinIA/comet/internal/preview"
	"github.com/ButyrinIA/comet/internal/server"
	"github.com/ButyrinIA/comet/internal/storage"
	"github.com/ButyrinIA/comet/internal/storage/memory"
	"github.com/ButyrinIA/comet/internal/storage/postgres"
	"github.com/ButyrinIA/comet/internal/thumbnail"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "", "тип хранилища: memory или postgres (по умолчанию postgres, если задан DSN)")
	seedUsers := flag.String("seed-users", "", "пользователи через запятую, создаваемые при старте (для разработки)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Не удалось прочитать .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	if err := logger.Initialize(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, *storageType)
	if err != nil {
		logger.Log.Fatal("storage initialization failed", zap.Error(err))
	}
	defer store.Close()

	if err := seed(ctx, store, *seedUsers); err != nil {
		logger.Log.Fatal("seeding users failed", zap.Error(err))
	}

	thumbs, err := newThumbnailer(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("thumbnail pipeline initialization failed", zap.Error(err))
	}

	viewers := personalize.NewBuilder(store, logger.Log)
	pages := preview.NewHTMLFetcher(&http.Client{}, cfg.Preview.Timeout, logger.Log)
	resolver := graphql.NewResolver(graphql.Services{
		Feed: feed.NewComposer(store, viewers, feed.Options{
			DefaultPageSize: cfg.Feed.DefaultPageSize,
			MaxPageSize:     cfg.Feed.MaxPageSize,
			Logger:          logger.Log,
		}),
		Posting:   posting.NewService(store, pages, thumbs, posting.Options{Logger: logger.Log}),
		Endorse:   endorse.NewEngine(store, logger.Log),
		Relations: personalize.NewRelations(store, logger.Log),
		Titles:    pages,
		Users:     store,
	}, logger.Log)

	schema, err := graphql.NewSchema(resolver)
	if err != nil {
		logger.Log.Fatal("graphql schema is invalid", zap.Error(err))
	}

	srv := server.New(cfg, schema, store, logger.Log)
	if err := srv.Run(ctx); err != nil {
		logger.Log.Fatal("server stopped with error", zap.Error(err))
	}
}

func openStorage(ctx context.Context, cfg *config.Config, kind string) (storage.Storage, error) {
	if kind == "" {
		kind = "memory"
		if cfg.Postgres.DSN != "" {
			kind = "postgres"
		}
	}

	switch kind {
	case "postgres":
		logger.Log.Info("using postgres storage")
		store, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		logger.Log.Info("using memory storage")
		return memory.New(), nil
	default:
		return nil, errors.New("unknown storage type: " + kind)
	}
}

// newThumbnailer возвращает nil, если миниатюры выключены
func newThumbnailer(ctx context.Context, cfg *config.Config) (posting.Thumbnailer, error) {
	if !cfg.Thumbnails.Enabled {
		logger.Log.Info("thumbnails disabled")
		return nil, nil
	}
	uploader, err := thumbnail.NewS3Uploader(ctx, cfg.Thumbnails.Region, cfg.Thumbnails.Bucket, cfg.Thumbnails.BaseURL)
	if err != nil {
		return nil, err
	}
	return thumbnail.NewPipeline(&http.Client{}, uploader, cfg.Thumbnails.Timeout, logger.Log), nil
}

func seed(ctx context.Context, store storage.Storage, list string) error {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, err := store.GetUser(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := store.CreateUser(ctx, &models.User{ID: name, Username: name}); err != nil {
			return err
		}
		logger.Log.Info("user seeded", logger.WithUserID(name))
	}
	return nil
}
