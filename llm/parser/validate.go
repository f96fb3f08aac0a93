package parser

import (
	"fmt"
	"strings"
)

// AllowedExtensions lists the upload extensions accepted by Validate.
var AllowedExtensions = []string{"pdf", "txt"}

// ValidationError describes an upload rejected before anything touched disk.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// Validate checks an upload's declared name and size.
func Validate(name string, size, maxBytes int64) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Reason: "ファイル名が空です"}
	}

	ext := Ext(name)
	if !isAllowedExt(ext) {
		return &ValidationError{
			Name:   name,
			Reason: fmt.Sprintf("許可されたファイル形式は .pdf または .txt のみです（アップロード: .%s）", ext),
		}
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if size > maxBytes {
		return &ValidationError{
			Name: name,
			Reason: fmt.Sprintf("ファイルサイズが大きすぎます (%.1fMB > %dMB)",
				float64(size)/1024/1024, maxBytes/1024/1024),
		}
	}

	return nil
}

func isAllowedExt(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
