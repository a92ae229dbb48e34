package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/braincheck/internal/preprocess"
	"github.com/example/braincheck/internal/report"
	"github.com/example/braincheck/internal/screening"
)

const (
	sessionTTL      = 30 * time.Minute
	maxPhotoBytes   = 20 << 20
	downloadTimeout = 30 * time.Second

	helpText = `MRI screening assistant.

/start - begin a new patient intake
/cancel - abort the current intake
/help - show this message

Answer the intake questions, then send the MRI scan as a photo (JPEG/PNG).
You will get a prediction and a PDF report. A photo sent outside an intake
is classified directly, without a report.

This bot is a demo and does not replace medical advice.`
)

// Screener is the slice of the screening service the bot needs.
type Screener interface {
	Screen(ctx context.Context, imageBytes []byte) (*screening.Outcome, error)
}

// Bot is the Telegram front-end. It shares the screening service with the
// HTTP front-end and holds no state beyond per-chat intake conversations.
type Bot struct {
	api      *tgbotapi.BotAPI
	svc      Screener
	sessions *sessions
	logger   *zap.Logger
	client   *http.Client
}

// New authenticates against the Telegram API.
func New(token string, svc Screener, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	return &Bot{
		api:      api,
		svc:      svc,
		sessions: newSessions(sessionTTL),
		logger:   logger.Named("bot"),
		client:   &http.Client{Timeout: downloadTimeout},
	}, nil
}

// Run polls for updates until the context is cancelled. A failing update is
// logged and answered with a warning; it never stops the loop.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", zap.Any("panic", r), zap.Int64("chat_id", msg.Chat.ID))
			b.reply(msg.Chat.ID, "Something went wrong, please try again.")
		}
	}()

	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	default:
		b.handleText(msg)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, b.sessions.begin(msg.Chat.ID))
	case "cancel":
		if b.sessions.cancel(msg.Chat.ID) {
			b.reply(msg.Chat.ID, "Intake cancelled.")
		} else {
			b.reply(msg.Chat.ID, "Nothing to cancel. Send /start to begin an intake.")
		}
	case "help":
		b.reply(msg.Chat.ID, helpText)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Send /help for usage.")
	}
}

func (b *Bot) handleText(msg *tgbotapi.Message) {
	prompt, active := b.sessions.advance(msg.Chat.ID, msg.Text)
	if !active {
		b.reply(msg.Chat.ID, "Send /start to begin a patient intake, or send an MRI photo for a quick check.")
		return
	}
	b.reply(msg.Chat.ID, prompt)
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	data, err := b.downloadPhoto(ctx, msg.Photo)
	if err != nil {
		b.logger.Warn("photo download failed", zap.Error(err), zap.Int64("chat_id", chatID))
		b.reply(chatID, "Failed to download the image, please try again.")
		return
	}

	outcome, err := b.svc.Screen(ctx, data)
	if err != nil {
		if errors.Is(err, preprocess.ErrInvalidImage) {
			b.reply(chatID, "Could not process image: unsupported or corrupted file. Please send a JPEG or PNG photo.")
		} else {
			b.logger.Error("screening failed", zap.Error(err), zap.Int64("chat_id", chatID))
			b.reply(chatID, "Could not process image, please try again later.")
		}
		return
	}

	b.reply(chatID, formatPrediction(outcome))

	patient, ok := b.sessions.awaitingImage(chatID)
	if !ok {
		return
	}

	pdf, err := report.Generate(patient, outcome.Label, outcome.Confidence, data)
	if err != nil {
		b.logger.Error("report generation failed", zap.Error(err), zap.Int64("chat_id", chatID))
		b.reply(chatID, "The scan was classified but the PDF report could not be generated.")
		b.sessions.finish(chatID)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "mri_screening_report.pdf", Bytes: pdf})
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("failed to send report", zap.Error(err), zap.Int64("chat_id", chatID))
		b.reply(chatID, "The PDF report could not be delivered.")
	}
	b.sessions.finish(chatID)
}

// downloadPhoto fetches the highest-resolution rendition of the photo.
func (b *Bot) downloadPhoto(ctx context.Context, photos []tgbotapi.PhotoSize) ([]byte, error) {
	if len(photos) == 0 {
		return nil, errors.New("message has no photo sizes")
	}
	largest := photos[len(photos)-1]

	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: largest.FileID})
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch file: unexpected status %d", resp.StatusCode)
	}

	data, err := readAllLimited(resp.Body, maxPhotoBytes)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// readAllLimited reads at most limit bytes and fails when the stream holds
// more. Truncating a photo would hand corrupted bytes to the classifier.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("payload exceeds %d byte limit", limit)
	}
	return data, nil
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("failed to send reply", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func formatPrediction(o *screening.Outcome) string {
	return fmt.Sprintf("Prediction: %s (%.0f%%)", o.Label, o.Confidence*100)
}
