package image

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"menu-recommender/internal/pkg/common"
)

// 支援的圖片媒體類型
var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// DetectMediaType 由內容判斷媒體類型，無法判斷時視為 jpeg
func DetectMediaType(data []byte) string {
	mt := http.DetectContentType(data)
	if supportedMediaTypes[mt] {
		return mt
	}
	return "image/jpeg"
}

// IsDataURI 是否為 data URI
func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "data:")
}

// DecodeBase64 解碼 base64 圖片，可帶或不帶 data URI 前綴
func DecodeBase64(s string, maxBytes int64) ([]byte, error) {
	s = strings.TrimSpace(s)
	if IsDataURI(s) {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: data URI is missing ',' separator", common.ErrInvalidImageFormat)
		}
		header := s[:comma]
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: only base64 data URIs are supported", common.ErrInvalidImageFormat)
		}
		if mt := strings.TrimPrefix(strings.TrimSuffix(header, ";base64"), "data:"); !strings.HasPrefix(mt, "image/") {
			return nil, fmt.Errorf("%w: unsupported media type %q", common.ErrInvalidImageFormat, mt)
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty image payload", common.ErrInvalidImageFormat)
	}

	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(s))) > maxBytes+2 {
		return nil, fmt.Errorf("%w: maximum is %d bytes", common.ErrInvalidImageSize, maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// 部分客戶端省略 padding
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			data = raw
		} else {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidImageFormat, err)
		}
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: maximum is %d bytes", common.ErrInvalidImageSize, maxBytes)
	}
	return data, nil
}

// EncodeDataURI 將圖片編為 data URI
func EncodeDataURI(data []byte, mediaType string) string {
	if mediaType == "" {
		mediaType = DetectMediaType(data)
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data))
}
