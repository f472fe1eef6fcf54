package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
)

const maxImageBytes = 20 << 20

// Recognizer turns preprocessed image bytes into raw text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// FileResolver turns a chat platform file id into a short-lived download URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

type Pipeline struct {
	tracer     trace.Tracer
	recognizer Recognizer
	httpClient *http.Client
	dir        string
	files      FileResolver
}

func NewPipeline(tracer trace.Tracer, recognizer Recognizer, dir string, httpClient *http.Client) *Pipeline {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &Pipeline{tracer: tracer, recognizer: recognizer, httpClient: httpClient, dir: dir}
}

// SetFileResolver enables photo jobs that carry a file id.
func (p *Pipeline) SetFileResolver(files FileResolver) {
	p.files = files
}

// Analyze downloads the screenshot (when given a URL), runs recognition and
// parses the result. A downloaded file is removed on every exit path.
// Text with nothing recognizable beyond defaults is rejected as invalid input.
func (p *Pipeline) Analyze(ctx context.Context, photo domain.PhotoPayload) (*domain.TradeInput, error) {
	ctx, span := p.tracer.Start(ctx, "ocr.analyze")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat_id", photo.ChatID))

	var text string
	recognize := func(path string) error {
		var err error
		text, err = p.RecognizeFile(ctx, path)
		return err
	}
	switch {
	case photo.FileID != "":
		if p.files == nil {
			return nil, errors.New("photo job has a file id but no file resolver is configured")
		}
		fileURL, err := p.files.FileURL(ctx, photo.FileID)
		if err != nil {
			return nil, err
		}
		if err := p.withDownload(ctx, photo.ChatID, fileURL, recognize); err != nil {
			return nil, err
		}
	case photo.FileURL != "":
		if err := p.withDownload(ctx, photo.ChatID, photo.FileURL, recognize); err != nil {
			return nil, err
		}
	case photo.FilePath != "":
		var err error
		if text, err = p.RecognizeFile(ctx, photo.FilePath); err != nil {
			return nil, err
		}
	default:
		return nil, domain.InvalidInput("photo job has no file id, url or path")
	}

	input, err := ExtractTradeInput(text)
	if err != nil {
		return nil, err
	}
	if !Recognized(input) {
		return nil, domain.InvalidInput("no trade data recognized in screenshot")
	}
	span.SetAttributes(
		attribute.String("symbol", input.Symbol),
		attribute.String("timeframe", input.Timeframe),
	)
	return input, nil
}

// RecognizeFile preprocesses an image on disk and returns the recognized text.
func (p *Pipeline) RecognizeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, err := Preprocess(io.LimitReader(f, maxImageBytes))
	if err != nil {
		return "", domain.InvalidInput("unreadable image: %v", err)
	}
	text, err := p.recognizer.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return text, nil
}

// withDownload streams rawURL into a per-job temp file, closes it so the write is
// complete, runs fn on the path, then removes the file.
func (p *Pipeline) withDownload(ctx context.Context, chatID int64, rawURL string, fn func(path string) error) error {
	f, err := os.CreateTemp(p.dir, fmt.Sprintf("chart_%d_*.jpg", chatID))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := p.fetch(ctx, rawURL, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("finish image write: %w", err)
	}
	return fn(path)
}

// fetch downloads rawURL into w. Errors never include the URL, which may
// carry credentials.
func (p *Pipeline) fetch(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.InvalidInput("bad file url")
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return domain.Transient(fmt.Errorf("download image: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.Transient(fmt.Errorf("download image: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return domain.InvalidInput("download image: status %d", resp.StatusCode)
	}

	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return domain.Transient(fmt.Errorf("download image: %w", err))
	}
	return nil
}
