package source

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"
)

const (
	mediaTypeTextPlain = "text/plain"
	mediaTypeTextHTML  = "text/html"
)

// MessageBody extracts the readable body of a message payload.
//
// A multipart message yields its first text/plain part, searched depth-first.
// Any other message yields its top-level body, with HTML reduced to text.
// A message without such a body yields "" and no error.
func MessageBody(payload *gmail.MessagePart) (string, error) {
	if payload == nil {
		return "", nil
	}

	if isMultipart(payload) {
		part := firstPlainTextPart(payload.Parts)
		if part == nil {
			return "", nil
		}
		return decodePartBody(part)
	}

	text, err := decodePartBody(payload)
	if err != nil {
		return "", err
	}

	if mediaType(payload) == mediaTypeTextHTML {
		return HTMLToText(text)
	}

	return text, nil
}

func isMultipart(part *gmail.MessagePart) bool {
	return strings.HasPrefix(mediaType(part), "multipart/") || len(part.Parts) > 0
}

func firstPlainTextPart(parts []*gmail.MessagePart) *gmail.MessagePart {
	for _, part := range parts {
		if part == nil {
			continue
		}

		if mediaType(part) == mediaTypeTextPlain {
			return part
		}

		if len(part.Parts) > 0 {
			if nested := firstPlainTextPart(part.Parts); nested != nil {
				return nested
			}
		}
	}

	return nil
}

func mediaType(part *gmail.MessagePart) string {
	mt, _, err := mime.ParseMediaType(part.MimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(part.MimeType))
	}
	return mt
}

func decodePartBody(part *gmail.MessagePart) (string, error) {
	if part.Body == nil || part.Body.Data == "" {
		return "", nil
	}

	data := strings.TrimRight(part.Body.Data, "=")

	decoded, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode base64url body (mimeType = %s): %w", part.MimeType, err)
	}

	return string(decoded), nil
}
