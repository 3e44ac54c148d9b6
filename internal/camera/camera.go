package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	"emobot/internal/domain"
)

type Source interface {
	Open(ctx context.Context) (Device, error)
}

// Device is an open capture handle. Close releases the hardware and must be
// called exactly once by whoever opened it.
type Device interface {
	Read(ctx context.Context) (domain.Frame, error)
	Close() error
}

const maxFrameBytes = 8 << 20

// HTTPSource reads snapshots from a camera that serves one JPEG per GET,
// such as an ESP32-CAM /capture endpoint.
type HTTPSource struct {
	url     string
	timeout time.Duration
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPSource{url: strings.TrimSpace(url), timeout: timeout}
}

func (s *HTTPSource) Open(ctx context.Context) (Device, error) {
	if s.url == "" {
		return nil, fmt.Errorf("camera url is not configured")
	}
	dev := &httpDevice{
		url:  s.url,
		http: &http.Client{Timeout: s.timeout},
		now:  time.Now,
	}
	if _, err := dev.Read(ctx); err != nil {
		dev.Close()
		return nil, fmt.Errorf("open camera: %w", err)
	}
	return dev, nil
}

type httpDevice struct {
	url  string
	http *http.Client
	now  func() time.Time
}

func (d *httpDevice) Read(ctx context.Context) (domain.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return domain.Frame{}, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return domain.Frame{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return domain.Frame{}, fmt.Errorf("read frame: %w", err)
	}
	if resp.StatusCode >= 300 {
		return domain.Frame{}, fmt.Errorf("camera status=%d", resp.StatusCode)
	}
	if len(body) > maxFrameBytes {
		return domain.Frame{}, fmt.Errorf("frame too large")
	}
	return DecodeJPEG(body, d.now())
}

func (d *httpDevice) Close() error {
	d.http.CloseIdleConnections()
	return nil
}

// DecodeJPEG checks that data is a JPEG that converts to RGB and records its size.
func DecodeJPEG(data []byte, capturedAt time.Time) (domain.Frame, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if format != "jpeg" {
		return domain.Frame{}, fmt.Errorf("unsupported frame format %q", format)
	}
	rgba := ToRGBA(img)
	b := rgba.Bounds()
	return domain.Frame{
		JPEG:       data,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: capturedAt,
	}, nil
}

func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
