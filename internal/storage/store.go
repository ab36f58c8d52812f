package storage

import (
	"context"
	"path"
	"strings"
)

// ResultStore persists generated images and returns a caller-reachable URL.
type ResultStore interface {
	Save(ctx context.Context, jobID string, data []byte, mime string) (string, error)
}

// ObjectKey is the storage key for a job's result.
func ObjectKey(jobID, mime string) string {
	return path.Join("generations", jobID+extensionForMIME(mime))
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
