package utils

import (
	"errors"
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// 验证错误
var (
	// ErrEmptyID ID 为空
	ErrEmptyID = errors.New("id is empty")
	// ErrInvalidIDFormat ID 格式非法
	ErrInvalidIDFormat = errors.New("id format is invalid")
	// ErrIDTooLong ID 超长
	ErrIDTooLong = errors.New("id is too long")
	// ErrNotesTooLong 备注超长
	ErrNotesTooLong = errors.New("notes exceed maximum length")
	// ErrTooManyPhotos 照片数量超限
	ErrTooManyPhotos = errors.New("too many photo urls")
	// ErrInvalidPhotoURL 照片 URL 非法
	ErrInvalidPhotoURL = errors.New("photo url is invalid")
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SanitizeString 清理字符串，移除或转义危险字符
func SanitizeString(input string) string {
	// 1. HTML 转义，防止 XSS
	sanitized := html.EscapeString(input)

	// 2. 移除控制字符（除了换行符和制表符）
	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// ValidateID 验证资源 ID 格式
func ValidateID(id string) error {
	// 1. 检查是否为空
	if id == "" {
		return ErrEmptyID
	}

	// 2. 检查格式（只允许字母、数字、连字符、下划线）
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}

	// 3. 检查长度（最大 64 字符）
	if len(id) > 64 {
		return ErrIDTooLong
	}

	return nil
}

// ValidateNotes 验证自由文本备注长度
func ValidateNotes(notes string, maxLen int) error {
	if maxLen > 0 && len(notes) > maxLen {
		return ErrNotesTooLong
	}
	return nil
}

// ValidatePhotoURLs 验证照片 URL 列表
func ValidatePhotoURLs(urls []string, maxCount int) error {
	if len(urls) > maxCount {
		return ErrTooManyPhotos
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			return ErrInvalidPhotoURL
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return ErrInvalidPhotoURL
		}
		if u.Host == "" || len(raw) > 512 {
			return ErrInvalidPhotoURL
		}
	}
	return nil
}
