package storage

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	apperrors "github.com/quickdesk/helpdesk/pkg/util"
)

// Upload is an attachment payload handed in by the transport layer. Open is
// called at most once, by the store that persists the bytes.
type Upload struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Open        func() (io.ReadCloser, error)
}

// allowedTypes pins the accepted extension/content-type pairs: images, pdf,
// office documents, plain text and zip archives.
var allowedTypes = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xls":  {"application/vnd.ms-excel"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".txt":  {"text/plain"},
	".zip":  {"application/zip", "application/x-zip-compressed"},
}

// Policy bounds a single request's attachments.
type Policy struct {
	MaxFileSizeBytes int64
	MaxFiles         int
}

// Validate checks every upload against the policy before any byte is stored.
// A single offender rejects the whole batch.
func (p Policy) Validate(uploads []Upload) error {
	if p.MaxFiles > 0 && len(uploads) > p.MaxFiles {
		return apperrors.NewValidationError(
			fmt.Sprintf("too many attachments: %d allowed", p.MaxFiles), nil)
	}
	for _, up := range uploads {
		if p.MaxFileSizeBytes > 0 && up.SizeBytes > p.MaxFileSizeBytes {
			return apperrors.NewUploadRejected(up.FileName,
				fmt.Sprintf("exceeds %d bytes", p.MaxFileSizeBytes))
		}
		ext := strings.ToLower(filepath.Ext(up.FileName))
		accepted, ok := allowedTypes[ext]
		if !ok {
			return apperrors.NewUploadRejected(up.FileName, "file type not allowed")
		}
		if !contentTypeAllowed(up.ContentType, accepted) {
			return apperrors.NewUploadRejected(up.FileName, "content type not allowed")
		}
	}
	return nil
}

func contentTypeAllowed(contentType string, accepted []string) bool {
	// Strip parameters such as "; charset=utf-8".
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range accepted {
		if contentType == candidate {
			return true
		}
	}
	return false
}
