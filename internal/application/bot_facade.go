package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"telegram-tts-bot/internal/domain"
	"telegram-tts-bot/internal/domain/model"
	"telegram-tts-bot/internal/domain/ports/adapter"
	"telegram-tts-bot/internal/infra/i18n"
	"telegram-tts-bot/internal/infra/logging"
	"telegram-tts-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// Callback data prefixes shared with the inline keyboards the facade sends.
const (
	cbTTSModel    = "tts_model:"
	cbVoicePreset = "voice_preset:"
	cbVoiceCustom = "voice_custom"
	cbSpeed       = "speed:"
	cbLMSummary   = "lm_summary:"
	cbLMFilename  = "lm_filename:"
)

var speedData = regexp.MustCompile(`^(0\.8|1|1\.0|1\.2|1\.4)$`)

// CallbackResult is what the adapter does with an answered callback query:
// Toast is shown as the query answer, Text replaces the keyboard message.
type CallbackResult struct {
	Toast string
	Text  string
}

// BotFacade composes the settings and delivery usecases into chat flows.
// Text messages are answered through the sink directly; callback queries
// return a CallbackResult so the adapter can edit the originating message.
type BotFacade struct {
	DeliveryUC DeliveryUseCaseIface
	SettingsUC SettingsUseCaseIface

	bot adapter.TelegramBotAdapter
	tr  *i18n.Translator
	log *zerolog.Logger
}

func NewBotFacade(
	deliveryUC DeliveryUseCaseIface,
	settingsUC SettingsUseCaseIface,
	bot adapter.TelegramBotAdapter,
	tr *i18n.Translator,
	logger *zerolog.Logger,
) *BotFacade {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	return &BotFacade{
		DeliveryUC: deliveryUC,
		SettingsUC: settingsUC,
		bot:        bot,
		tr:         tr,
		log:        logging.Component(logger, "BotFacade"),
	}
}

// MainMenu is the reply keyboard layout, one button per row.
func (b *BotFacade) MainMenu() [][]string {
	return [][]string{
		{b.tr.T("menu_select_tts_model")},
		{b.tr.T("menu_select_voice")},
		{b.tr.T("menu_select_speed")},
		{b.tr.T("menu_select_lm_summary")},
		{b.tr.T("menu_select_lm_filename")},
		{b.tr.T("menu_show_settings")},
	}
}

func (b *BotFacade) reply(ctx context.Context, chatID int64, text string) error {
	return b.bot.SendKeyboard(ctx, chatID, text, b.MainMenu())
}

// HandleText handles one text message: the custom voice step, a menu
// button, or a list of URLs to turn into a job.
func (b *BotFacade) HandleText(ctx context.Context, chatID int64, text string) error {
	ctx = logging.WithChatID(ctx, chatID)
	text = strings.TrimSpace(text)

	if err := b.handleText(ctx, chatID, text); err != nil {
		logging.With(ctx, b.log).Error().Err(err).Msg("text handling failed")
		return b.reply(ctx, chatID, b.tr.T("error_generic", err.Error()))
	}
	return nil
}

func (b *BotFacade) handleText(ctx context.Context, chatID int64, text string) error {
	settings, err := b.SettingsUC.Ensure(ctx, chatID)
	if err != nil {
		return err
	}

	waiting, err := b.SettingsUC.AwaitingCustomVoice(ctx, chatID)
	if err != nil {
		return err
	}
	if waiting {
		voice, err := b.SettingsUC.SetCustomVoice(ctx, chatID, text)
		if errors.Is(err, domain.ErrInvalidArgument) {
			return b.reply(ctx, chatID, b.tr.T("custom_voice_invalid"))
		}
		if err != nil {
			return err
		}
		return b.reply(ctx, chatID, b.tr.T("custom_voice_saved", voice))
	}

	switch text {
	case b.tr.T("menu_select_tts_model"):
		return b.sendTTSModels(ctx, chatID)
	case b.tr.T("menu_select_voice"):
		return b.sendVoices(ctx, chatID, settings)
	case b.tr.T("menu_select_speed"):
		return b.sendSpeeds(ctx, chatID)
	case b.tr.T("menu_select_lm_summary"):
		return b.sendLMModels(ctx, chatID, b.tr.T("choose_lm_summary"), cbLMSummary)
	case b.tr.T("menu_select_lm_filename"):
		return b.sendLMModels(ctx, chatID, b.tr.T("choose_lm_filename"), cbLMFilename)
	case b.tr.T("menu_show_settings"):
		return b.reply(ctx, chatID, b.tr.T("settings_summary",
			settings.TTSModel, settings.Voice, formatSpeed(settings.Speed),
			settings.LMSummaryModel, settings.LMFilenameModel))
	}

	return b.submit(ctx, chatID, text, settings)
}

func (b *BotFacade) submit(ctx context.Context, chatID int64, text string, settings *model.UserSettings) error {
	urls := usecase.ExtractURLs(text)
	if len(urls) == 0 {
		return b.reply(ctx, chatID, b.tr.T("help"))
	}

	if err := b.reply(ctx, chatID, b.tr.T("urls_accepted", len(urls))); err != nil {
		return err
	}
	jobID, err := b.DeliveryUC.SubmitAndTrack(ctx, chatID, urls, settings)
	if err != nil {
		return err
	}
	logging.With(logging.WithJobID(ctx, jobID), b.log).Info().Int("urls", len(urls)).Msg("job accepted")
	return nil
}

func (b *BotFacade) sendTTSModels(ctx context.Context, chatID int64) error {
	c, err := b.SettingsUC.Catalog(ctx, chatID)
	if err != nil {
		return err
	}
	rows := make([][]adapter.InlineButton, 0, len(c.TTS))
	for i, m := range c.TTS {
		rows = append(rows, []adapter.InlineButton{{Text: m.DisplayName(), Data: cbTTSModel + strconv.Itoa(i)}})
	}
	return b.bot.SendButtons(ctx, chatID, b.tr.T("choose_tts_model"), rows)
}

func (b *BotFacade) sendVoices(ctx context.Context, chatID int64, settings *model.UserSettings) error {
	c, err := b.SettingsUC.Catalog(ctx, chatID)
	if err != nil {
		return err
	}
	m, ok := c.FindTTS(settings.TTSModel)
	if !ok {
		return fmt.Errorf("tts models: %w", domain.ErrNoModels)
	}
	rows := make([][]adapter.InlineButton, 0, len(m.VoicePresets)+1)
	for _, v := range m.VoicePresets {
		rows = append(rows, []adapter.InlineButton{{Text: v, Data: cbVoicePreset + url.QueryEscape(v)}})
	}
	rows = append(rows, []adapter.InlineButton{{Text: b.tr.T("custom_voice_button"), Data: cbVoiceCustom}})
	return b.bot.SendButtons(ctx, chatID, b.tr.T("choose_voice", m.Label), rows)
}

func (b *BotFacade) sendSpeeds(ctx context.Context, chatID int64) error {
	rows := make([][]adapter.InlineButton, 0, len(model.SpeedPresets))
	for _, s := range model.SpeedPresets {
		label := formatSpeed(s)
		rows = append(rows, []adapter.InlineButton{{Text: label, Data: cbSpeed + label}})
	}
	return b.bot.SendButtons(ctx, chatID, b.tr.T("choose_speed"), rows)
}

func (b *BotFacade) sendLMModels(ctx context.Context, chatID int64, prompt, prefix string) error {
	c, err := b.SettingsUC.Catalog(ctx, chatID)
	if err != nil {
		return err
	}
	rows := make([][]adapter.InlineButton, 0, len(c.LM))
	for i, id := range c.LM {
		rows = append(rows, []adapter.InlineButton{{Text: id, Data: prefix + strconv.Itoa(i)}})
	}
	return b.bot.SendButtons(ctx, chatID, prompt, rows)
}

type cbHandler func(ctx context.Context, chatID int64, arg string) (CallbackResult, error)

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (b *BotFacade) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: cbTTSModel, Fn: b.ttsModelCB},
		{Prefix: cbVoicePreset, Fn: b.voicePresetCB},
		{Prefix: cbSpeed, Fn: b.speedCB},
		{Prefix: cbLMSummary, Fn: b.lmCB(usecase.LMRoleSummary)},
		{Prefix: cbLMFilename, Fn: b.lmCB(usecase.LMRoleFilename)},
	}
}

// HandleCallback resolves inline keyboard data. Unknown data yields an
// empty result so the adapter only answers the query.
func (b *BotFacade) HandleCallback(ctx context.Context, chatID int64, data string) (CallbackResult, error) {
	ctx = logging.WithChatID(ctx, chatID)
	data = strings.TrimSpace(data)

	if data == cbVoiceCustom {
		if err := b.SettingsUC.BeginCustomVoice(ctx, chatID); err != nil {
			return CallbackResult{}, err
		}
		return CallbackResult{Toast: b.tr.T("custom_voice_toast"), Text: b.tr.T("custom_voice_prompt")}, nil
	}
	for _, r := range b.cbPrefixRoutes() {
		if strings.HasPrefix(data, r.Prefix) {
			return r.Fn(ctx, chatID, strings.TrimPrefix(data, r.Prefix))
		}
	}
	return CallbackResult{}, nil
}

func (b *BotFacade) ttsModelCB(ctx context.Context, chatID int64, arg string) (CallbackResult, error) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return CallbackResult{Toast: b.tr.T("model_not_found")}, nil
	}
	chosen, err := b.SettingsUC.SelectTTSModel(ctx, chatID, idx)
	if errors.Is(err, domain.ErrNotFound) {
		return CallbackResult{Toast: b.tr.T("model_not_found")}, nil
	}
	if err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{Toast: b.tr.T("tts_model_updated"), Text: b.tr.T("tts_model_set", chosen.DisplayName())}, nil
}

func (b *BotFacade) voicePresetCB(ctx context.Context, chatID int64, arg string) (CallbackResult, error) {
	voice, err := url.QueryUnescape(arg)
	if err != nil || voice == "" {
		return CallbackResult{}, fmt.Errorf("voice %q: %w", arg, domain.ErrInvalidArgument)
	}
	if err := b.SettingsUC.SetVoice(ctx, chatID, voice); err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{Toast: b.tr.T("voice_updated"), Text: b.tr.T("voice_set", voice)}, nil
}

func (b *BotFacade) speedCB(ctx context.Context, chatID int64, arg string) (CallbackResult, error) {
	if !speedData.MatchString(arg) {
		return CallbackResult{}, nil
	}
	speed, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return CallbackResult{}, err
	}
	if err := b.SettingsUC.SetSpeed(ctx, chatID, speed); err != nil {
		return CallbackResult{}, err
	}
	return CallbackResult{Toast: b.tr.T("speed_updated"), Text: b.tr.T("speed_set", formatSpeed(speed))}, nil
}

func (b *BotFacade) lmCB(role usecase.LMRole) cbHandler {
	toast, setKey := "summary_model_updated", "lm_summary_set"
	if role == usecase.LMRoleFilename {
		toast, setKey = "filename_model_updated", "lm_filename_set"
	}
	return func(ctx context.Context, chatID int64, arg string) (CallbackResult, error) {
		idx, err := strconv.Atoi(arg)
		if err != nil {
			return CallbackResult{Toast: b.tr.T("model_not_found")}, nil
		}
		modelID, v, err := b.SettingsUC.SelectLMModel(ctx, chatID, role, idx)
		if errors.Is(err, domain.ErrNotFound) {
			return CallbackResult{Toast: b.tr.T("model_not_found")}, nil
		}
		if err != nil {
			return CallbackResult{}, err
		}
		if !v.Valid {
			reason := v.Reason
			if reason == "" {
				reason = b.tr.T("model_validation_failed")
			}
			return CallbackResult{Toast: b.tr.T("model_invalid"), Text: b.tr.T("model_rejected", modelID, reason)}, nil
		}
		return CallbackResult{Toast: b.tr.T(toast), Text: b.tr.T(setKey, modelID)}, nil
	}
}

// formatSpeed prints 1.0 as "1" and 0.8 as "0.8".
func formatSpeed(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
