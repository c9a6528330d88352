package telegram

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-tts-bot/internal/application"
	"telegram-tts-bot/internal/config"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/infra/i18n"
	"telegram-tts-bot/internal/infra/logging"
	red "telegram-tts-bot/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler is the chat logic the adapter dispatches updates to.
type UpdateHandler interface {
	HandleText(ctx context.Context, chatID int64, text string) error
	HandleCallback(ctx context.Context, chatID int64, data string) (application.CallbackResult, error)
	MainMenu() [][]string
}

var _ UpdateHandler = (*application.BotFacade)(nil)

type limiter interface {
	Allow(ctx context.Context, chatID int64, kind string) (bool, error)
}

var _ limiter = (*red.ChatLimiter)(nil)

// botAPI is the subset of *tgbotapi.BotAPI used to talk back to chats.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// RealTelegramBotAdapter receives updates by long polling or webhook and
// hands them to an UpdateHandler on a fixed pool of workers.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	api         botAPI
	cfg         *config.BotConfig
	handler     UpdateHandler
	rateLimiter limiter
	tr          *i18n.Translator
	log         *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter limiter, tr *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if tr == nil {
		tr = i18n.MustDefault()
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	return &RealTelegramBotAdapter{
		bot:         bot,
		api:         bot,
		cfg:         cfg,
		rateLimiter: rateLimiter,
		tr:          tr,
		log:         logging.Component(logger, "TelegramBot"),
	}, nil
}

// Bind sets the handler. It must be called before Run.
func (r *RealTelegramBotAdapter) Bind(h UpdateHandler) {
	r.handler = h
}

// Run receives updates until ctx is cancelled or Stop is called.
func (r *RealTelegramBotAdapter) Run(ctx context.Context) error {
	if r.handler == nil {
		return errors.New("telegram adapter has no handler bound")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	updates := make(chan tgbotapi.Update, 100)
	var wg sync.WaitGroup
	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.work(ctx, id, updates)
		}(i)
	}

	var err error
	if strings.EqualFold(r.cfg.Mode, "webhook") {
		err = r.serveWebhook(ctx, updates)
	} else {
		err = r.poll(ctx, updates)
	}
	cancel()
	wg.Wait()
	return err
}

func (r *RealTelegramBotAdapter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RealTelegramBotAdapter) work(ctx context.Context, id int, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-updates:
			uctx := logging.WithTraceID(ctx, uuid.NewString())
			if err := r.handleUpdate(uctx, up); err != nil {
				logging.With(uctx, r.log).Error().Err(err).Int("worker", id).Int("update_id", up.UpdateID).Msg("update handling failed")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) poll(ctx context.Context, out chan<- tgbotapi.Update) error {
	// A leftover webhook makes getUpdates fail.
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn().Err(err).Msg("deleteWebhook failed")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()

	r.log.Info().Int("workers", r.cfg.Workers).Msg("polling for updates")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return errors.New("update channel closed")
			}
			select {
			case out <- up:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (r *RealTelegramBotAdapter) serveWebhook(ctx context.Context, out chan<- tgbotapi.Update) error {
	wh := r.cfg.Webhook
	link := "https://" + strings.TrimSuffix(wh.Domain, "/") + wh.Path
	params := tgbotapi.Params{"url": link}
	if wh.Secret != "" {
		params["secret_token"] = wh.Secret
	}
	if _, err := r.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}

	router := chi.NewRouter()
	router.Post(wh.Path, r.webhookHandler(ctx, out))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", wh.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.log.Info().Str("path", wh.Path).Int("port", wh.Port).Msg("serving webhook")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (r *RealTelegramBotAdapter) webhookHandler(ctx context.Context, out chan<- tgbotapi.Update) http.HandlerFunc {
	secret := r.cfg.Webhook.Secret
	return func(w http.ResponseWriter, req *http.Request) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(req.Header.Get(secretHeader)), []byte(secret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		up, err := r.bot.HandleUpdate(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		select {
		case out <- *up:
			w.WriteHeader(http.StatusOK)
		case <-ctx.Done():
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		}
	}
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, up tgbotapi.Update) error {
	switch {
	case up.CallbackQuery != nil:
		return r.handleQuery(ctx, up.CallbackQuery)
	case up.Message != nil:
		return r.handleMessage(ctx, up.Message)
	}
	return nil
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, chatID int64, kind string) bool {
	if r.rateLimiter == nil {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, chatID, kind)
	if err != nil {
		// Redis trouble must not take the bot down.
		logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return allowed
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealTelegramBotAdapter) SendKeyboard(ctx context.Context, chatID int64, text string, keys [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = replyKeyboard(keys)
	_, err := r.api.Send(msg)
	return err
}

// SendButtons sends a message with inline buttons. URL buttons open a link;
// the rest send their Data, or their label when Data is empty.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineKeyboard(rows)
	_, err := r.api.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendArtifact(ctx context.Context, chatID int64, a model.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.api.Send(artifactMessage(chatID, a))
	return err
}

func replyKeyboard(keys [][]string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(keys))
	for _, row := range keys {
		if len(row) == 0 {
			continue
		}
		btns := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			btns = append(btns, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(btns...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}

func inlineKeyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

// artifactMessage sends voice artifacts as voice notes and everything else
// as a document.
func artifactMessage(chatID int64, a model.Artifact) tgbotapi.Chattable {
	file := tgbotapi.FileBytes{Name: a.Filename, Bytes: a.Data}
	if a.Kind == model.ArtifactKindVoice {
		v := tgbotapi.NewVoice(chatID, file)
		v.Caption = a.Caption
		return v
	}
	d := tgbotapi.NewDocument(chatID, file)
	d.Caption = a.Caption
	return d
}
