package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tgfeed/internal/adapters/mtproto"
	"tgfeed/internal/adapters/repo"
	"tgfeed/internal/infra/config"
	"tgfeed/internal/infra/db"
	"tgfeed/internal/infra/log"
)

func main() {
	var (
		filePath    string
		sessionName string
	)
	flag.StringVar(&filePath, "file", "", "Path to MTProto session file (gotd JSON, Telethon string or export)")
	flag.StringVar(&sessionName, "name", "", "Name of the MTProto session (defaults to MTPROTO_SESSION_NAME)")
	flag.Parse()

	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv).With().Str("component", "mtproto-importer").Logger()

	if filePath == "" {
		logger.Fatal().Msg("mtproto-importer: укажите путь к файлу сессии (-file)")
	}
	if sessionName == "" {
		sessionName = cfg.MTProto.SessionName
	}
	if cfg.PGDSN == "" {
		logger.Fatal().Msg("mtproto-importer: PG_DSN не задан")
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("mtproto-importer: не удалось прочитать файл сессии")
	}
	data, converted, err := mtproto.ImportSession(raw)
	if err != nil {
		logger.Fatal().Err(err).Msg("mtproto-importer: формат сессии не поддерживается")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("mtproto-importer: не удалось подключиться к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("mtproto-importer: не удалось применить схему")
	}
	if err := store.StoreMTProtoSession(ctx, sessionName, data); err != nil {
		logger.Fatal().Err(err).Msg("mtproto-importer: не удалось сохранить сессию")
	}

	if converted {
		fmt.Println("Session was converted to gotd JSON format before storing")
	}
	fmt.Printf("Stored MTProto session %q (%d bytes) in database\n", sessionName, len(data))
}
