package domain

import "strings"

// DefaultMaxFileBytes 50 MiB
const DefaultMaxFileBytes int64 = 50 * 1024 * 1024

// DefaultAllowedTypes entries ending with "/" match as prefix
var DefaultAllowedTypes = []string{
	"image/",
	"audio/",
	"video/",
	"text/",
	"application/pdf",
	"application/json",
	"application/zip",
	"application/x-zip-compressed",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// FilePolicy attachment limits
type FilePolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// NewFilePolicy zero values fall back to the defaults
func NewFilePolicy(maxBytes int64, allowed []string) FilePolicy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	return FilePolicy{MaxBytes: maxBytes, AllowedTypes: allowed}
}

// Allows report whether mimeType is on the allow-list; parameters are ignored
func (p FilePolicy) Allows(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" {
		return false
	}
	for _, a := range p.AllowedTypes {
		a = strings.ToLower(a)
		if strings.HasSuffix(a, "/") {
			if strings.HasPrefix(mt, a) {
				return true
			}
			continue
		}
		if mt == a {
			return true
		}
	}
	return false
}
