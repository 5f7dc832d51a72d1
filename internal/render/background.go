package render

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // background formats
	_ "image/png"
	"net/http"
)

type BackgroundFetcher interface {
	Fetch(ctx context.Context, ref string) (image.Image, error)
}

type HTTPBackgroundFetcher struct {
	Client *http.Client
}

func NewHTTPBackgroundFetcher() *HTTPBackgroundFetcher {
	return &HTTPBackgroundFetcher{Client: http.DefaultClient}
}

func (f *HTTPBackgroundFetcher) Fetch(ctx context.Context, ref string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("f.Client.Do -> %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("background %s: unexpected status %d", ref, resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("image.Decode -> %w", err)
	}
	return img, nil
}
