package domain

import (
	"encoding/base64"
	"strings"
)

// AssetKind distinguishes remotely hosted results from inline payloads.
type AssetKind string

const (
	AssetKindURL    AssetKind = "url"
	AssetKindInline AssetKind = "inline"
)

// Asset is a provider result. For inline assets Value holds base64 data.
type Asset struct {
	Kind  AssetKind
	Value string
	MIME  string
}

// Reference returns a string usable as the ledger result reference: the URL
// itself, or a data URI for inline payloads.
func (a Asset) Reference() string {
	if a.Kind == AssetKindInline {
		mime := a.MIME
		if mime == "" {
			mime = "application/octet-stream"
		}
		return "data:" + mime + ";base64," + a.Value
	}
	return a.Value
}

// Bytes decodes an inline payload.
func (a Asset) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(a.Value))
}

// Extension guesses a file extension from the MIME type.
func (a Asset) Extension() string {
	switch strings.ToLower(a.MIME) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "image/png", "":
		return ".png"
	default:
		return ".bin"
	}
}
