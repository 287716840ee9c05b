package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"

	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.telegram.org"

// Config holds the Telegram bot settings.
type Config struct {
	Token   string
	ChatID  string
	APIBase string
	Timeout time.Duration
}

// TelegramSender delivers alerts through the Telegram Bot API. Photo sends
// carry the evidence frame as attachment; when the image is missing or the
// photo send fails, it degrades to a text-only message rather than failing
// the alert.
type TelegramSender struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewTelegramSender(cfg Config, logger *zap.SugaredLogger) *TelegramSender {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TelegramSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Send delivers the alert, preferring a photo with caption.
func (t *TelegramSender) Send(ctx context.Context, imagePath, message string) error {
	if imagePath != "" {
		if err := t.sendPhoto(ctx, imagePath, message); err == nil {
			return nil
		} else {
			t.logger.Warnw("photo send failed, falling back to text message",
				"image", filepath.Base(imagePath),
				"error", err,
			)
		}
	}
	if err := t.sendMessage(ctx, message); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAlertNotDelivered, err)
	}
	return nil
}

func (t *TelegramSender) sendPhoto(ctx context.Context, imagePath, caption string) error {
	photo, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open evidence image: %w", err)
	}
	defer photo.Close()

	var body strings.Builder
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", t.cfg.ChatID); err != nil {
		return err
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("photo", filepath.Base(imagePath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, photo); err != nil {
		return fmt.Errorf("copy evidence image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", t.cfg.APIBase, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return t.do(req)
}

func (t *TelegramSender) sendMessage(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.cfg.ChatID)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.APIBase, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return t.do(req)
}

func (t *TelegramSender) do(req *http.Request) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var reply struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Errorf("decode telegram reply: %w", err)
	}
	if !reply.OK {
		return fmt.Errorf("telegram rejected send: %s", reply.Description)
	}
	return nil
}
