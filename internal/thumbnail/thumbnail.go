// Package thumbnail скачивает изображение, уменьшает его до миниатюры
// и выкладывает в объектное хранилище.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ButyrinIA/comet/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxImageBytes = 10 << 20
	jpegQuality   = 85
)

// Size - размер миниатюры в пикселях
type Size struct {
	Width  int
	Height int
}

var (
	SquareSize = Size{Width: 72, Height: 72}
	VideoSize  = Size{Width: 128, Height: 72}
)

// SizeFor подбирает размер: превью YouTube (ytimg.com) получают широкий формат
func SizeFor(imageURL string) Size {
	u, err := url.Parse(imageURL)
	if err != nil {
		return SquareSize
	}
	host := strings.ToLower(u.Hostname())
	if host == "ytimg.com" || strings.HasSuffix(host, ".ytimg.com") {
		return VideoSize
	}
	return SquareSize
}

type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Pipeline struct {
	client   *http.Client
	uploader Uploader
	timeout  time.Duration
	log      *zap.Logger
}

func NewPipeline(client *http.Client, uploader Uploader, timeout time.Duration, log *zap.Logger) *Pipeline {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pipeline{client: client, uploader: uploader, timeout: timeout, log: logger.OrDefault(log)}
}

// Process возвращает публичный адрес миниатюры <postID>.jpeg
func (p *Pipeline) Process(ctx context.Context, postID, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	src, err := p.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	data, err := Render(src, SizeFor(imageURL))
	if err != nil {
		return "", err
	}

	location, err := p.uploader.Upload(ctx, postID+".jpeg", data, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	p.log.Debug("thumbnail stored", logger.WithPostID(postID), zap.String("location", location), zap.Int("bytes", len(data)))
	return location, nil
}

func (p *Pipeline) download(ctx context.Context, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Render масштабирует изображение с заполнением кадра (лишнее обрезается по центру)
// и кодирует результат в JPEG
func Render(src image.Image, size Size) ([]byte, error) {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	// для очень узких картинок сторона кадра не меньше одного пикселя
	crop := b
	if b.Dx()*size.Height > b.Dy()*size.Width {
		w := max(1, b.Dy()*size.Width/size.Height)
		crop.Min.X = b.Min.X + (b.Dx()-w)/2
		crop.Max.X = crop.Min.X + w
	} else {
		h := max(1, b.Dx()*size.Height/size.Width)
		crop.Min.Y = b.Min.Y + (b.Dy()-h)/2
		crop.Max.Y = crop.Min.Y + h
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
