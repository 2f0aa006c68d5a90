package menu

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"menu-recommender/internal/core/ai/image"
	"menu-recommender/internal/pkg/common"
)

// Source 擷取輸入，四種之一
type Source interface {
	Kind() string
}

// TextSource 純文字菜單
type TextSource struct {
	Text string
}

// ImageURLSource 遠端圖片，直接交給模型讀取
type ImageURLSource struct {
	URL string
}

// InlineImageSource 已解碼的圖片內容
type InlineImageSource struct {
	Data []byte
}

// LocalFileSource 伺服器本機檔案，只在開發環境開放
type LocalFileSource struct {
	Path string
}

func (TextSource) Kind() string        { return "text" }
func (ImageURLSource) Kind() string    { return "image_url" }
func (InlineImageSource) Kind() string { return "inline_image" }
func (LocalFileSource) Kind() string   { return "local_file" }

// ExtractRequest 擷取請求內容
type ExtractRequest struct {
	MenuText      string `json:"menuText"`
	ImageURL      string `json:"imageUrl"`
	ImageBase64   string `json:"imageBase64"`
	LocalFilePath string `json:"localFilePath"`
}

// SourceOptions 解析輸入時的限制
type SourceOptions struct {
	AllowLocalFiles bool
	MaxImageBytes   int64
}

// ParseSource 在邊界一次決定輸入種類，必須恰好提供一種
func ParseSource(req ExtractRequest, opts SourceOptions) (Source, error) {
	text := strings.TrimSpace(req.MenuText)
	imageURL := strings.TrimSpace(req.ImageURL)
	b64 := strings.TrimSpace(req.ImageBase64)
	localPath := strings.TrimSpace(req.LocalFilePath)

	provided := 0
	for _, v := range []string{text, imageURL, b64, localPath} {
		if v != "" {
			provided++
		}
	}
	switch {
	case provided == 0:
		return nil, common.NewValidationError("One of menuText, imageUrl, imageBase64 or localFilePath is required")
	case provided > 1:
		return nil, common.NewValidationError("Provide only one of menuText, imageUrl, imageBase64 or localFilePath")
	}

	switch {
	case text != "":
		return TextSource{Text: text}, nil

	case imageURL != "":
		if image.IsDataURI(imageURL) {
			return decodeInline(imageURL, "imageUrl", opts.MaxImageBytes)
		}
		u, err := url.Parse(imageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, common.NewValidationError("imageUrl must be an http(s) URL or a data URI")
		}
		return ImageURLSource{URL: imageURL}, nil

	case b64 != "":
		return decodeInline(b64, "imageBase64", opts.MaxImageBytes)

	default:
		if !opts.AllowLocalFiles {
			return nil, common.NewValidationError("localFilePath is not enabled on this server")
		}
		return LocalFileSource{Path: localPath}, nil
	}
}

func decodeInline(payload, field string, maxBytes int64) (Source, error) {
	data, err := image.DecodeBase64(payload, maxBytes)
	if errors.Is(err, common.ErrInvalidImageSize) {
		return nil, common.WrapValidationError(err, fmt.Sprintf("%s exceeds the maximum image size of %d bytes", field, maxBytes))
	}
	if err != nil {
		return nil, common.WrapValidationError(err, fmt.Sprintf("%s is not a valid base64 image: %v", field, err))
	}
	return InlineImageSource{Data: data}, nil
}
