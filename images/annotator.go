// Package images downloads page images and generates natural-language
// descriptions for them through a vision model.
package images

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"notionrag/llm"
	"notionrag/notion"
)

const (
	downloadTimeout      = 30 * time.Second
	descriptionMaxTokens = 500

	describePrompt = "Describe this image in detail. If it shows a chart, diagram, or table, include its content and the key points it conveys."
)

// extension per declared content type; anything else falls back to .png.
var extByContentType = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
}

// Annotator fills in the LocalPath and Description of page images.
// Both steps degrade gracefully: a failed download skips the image, a
// failed description falls back to the source caption. Annotate never
// returns an error.
type Annotator struct {
	storageDir string
	vision     llm.VisionProvider
	client     *http.Client
}

// NewAnnotator creates an Annotator storing downloads under storageDir.
// vision may be nil, in which case descriptions fall back to captions.
func NewAnnotator(storageDir string, vision llm.VisionProvider) (*Annotator, error) {
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return nil, fmt.Errorf("creating image storage dir: %w", err)
	}
	return &Annotator{
		storageDir: storageDir,
		vision:     vision,
		client: &http.Client{
			Timeout: downloadTimeout, // redirects followed by default
		},
	}, nil
}

// Annotate downloads the image and generates a description, returning a
// new ImageInfo with whatever could be filled in. The local filename is
// derived from a hash of the URL, so re-annotating the same URL
// overwrites instead of duplicating.
func (a *Annotator) Annotate(ctx context.Context, info notion.ImageInfo) notion.ImageInfo {
	if info.URL == "" {
		return info
	}

	data, contentType, err := a.download(ctx, info.URL)
	if err != nil {
		slog.Warn("images: download failed", "url", info.URL, "error", err)
		return info
	}

	localPath := filepath.Join(a.storageDir, localFilename(info.URL, contentType))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		slog.Warn("images: writing image failed", "path", localPath, "error", err)
		return info
	}
	info.LocalPath = localPath

	description, err := a.describe(ctx, data, contentType, info.Caption)
	if err != nil {
		slog.Warn("images: description failed", "url", info.URL, "error", err)
		info.Description = info.Caption
		return info
	}
	info.Description = description
	return info
}

func (a *Annotator) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch error %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading image body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = "image/png"
	}

	return data, contentType, nil
}

func (a *Annotator) describe(ctx context.Context, data []byte, contentType, caption string) (string, error) {
	if a.vision == nil {
		return "", fmt.Errorf("no vision provider configured")
	}

	prompt := describePrompt
	if caption != "" {
		prompt += "\n\nCaption: " + caption
	}

	b64 := base64.StdEncoding.EncodeToString(data)

	resp, err := a.vision.ChatWithImages(ctx, llm.VisionChatRequest{
		Messages: []llm.VisionMessage{
			{
				Role: "user",
				Content: []llm.ContentPart{
					{Type: "text", Text: prompt},
					{
						Type:     "image_url",
						ImageURL: &llm.ImageURL{URL: fmt.Sprintf("data:%s;base64,%s", contentType, b64)},
					},
				},
			},
		},
		MaxTokens: descriptionMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	return resp.Content, nil
}

// localFilename derives a stable name from the URL hash plus an
// extension inferred from the declared content type.
func localFilename(url, contentType string) string {
	sum := sha256.Sum256([]byte(url))
	ext, ok := extByContentType[contentType]
	if !ok {
		ext = ".png"
	}
	return hex.EncodeToString(sum[:])[:16] + ext
}
