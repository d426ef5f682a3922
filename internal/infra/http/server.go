package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	// WebhookPath — путь, на который Telegram присылает обновления.
	WebhookPath = "/bot/webhook"
	// SecretHeader несёт secret_token, заданный при регистрации вебхука.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// UpdateHandler обрабатывает одно обновление бота.
type UpdateHandler func(ctx context.Context, update tgbotapi.Update)

// Server оборачивает chi.Router с базовыми middlewares.
type Server struct {
	Router chi.Router
	log    zerolog.Logger
	srv    *http.Server
}

// NewServer создаёт HTTP сервер с /healthz на адресе addr.
func NewServer(logger zerolog.Logger, addr string) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		Router: r,
		log:    logger.With().Str("component", "http").Logger(),
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// MountWebhook регистрирует эндпоинт вебхука. Обновление обрабатывается в отдельной
// горутине с контекстом base, Telegram сразу получает 200.
// Запросы без верного заголовка SecretHeader отклоняются с 401.
func (s *Server) MountWebhook(base context.Context, secret string, handle UpdateHandler) {
	s.Router.Post(WebhookPath, func(w http.ResponseWriter, r *http.Request) {
		if !validSecret(r.Header.Get(SecretHeader), secret) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("http: вебхук без корректного секрета")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			s.log.Warn().Err(err).Msg("http: некорректное обновление вебхука")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		go handle(base, update)
		w.WriteHeader(http.StatusOK)
	})
}

// Start запускает http.Server и блокируется до его остановки.
// После Shutdown возвращает nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http: сервер запущен")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер. Вызов до Start не даёт ему стартовать.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func validSecret(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
