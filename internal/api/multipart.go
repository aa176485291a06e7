package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/fithub/fithub-api/internal/api/shared"
	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/service/attach"
)

// Upload limits for content requests.
const (
	MaxImages             = 10
	MaxImageBytes         = 10 << 20
	MaxUploadRequestBytes = 50 << 20

	dataPart  = "data"
	imagePart = "images"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// parseContentRequest reads a content create or update request. Multipart
// requests carry the JSON in a "data" part and images in "images" parts;
// plain JSON requests carry no images.
func parseContentRequest(w http.ResponseWriter, r *http.Request) (ContentRequest, []attach.Upload, error) {
	var req ContentRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := shared.DecodeJSON(r, &req); err != nil {
			return req, nil, jsonError(err)
		}
		return req, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadRequestBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return req, nil, domain.NewValidationError("body", "malformed multipart request", domain.ErrValidation)
	}

	var (
		uploads []attach.Upload
		hasData bool
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return req, nil, multipartError(err)
		}

		switch part.FormName() {
		case dataPart:
			if hasData {
				return req, nil, domain.NewValidationError(dataPart, "given more than once", domain.ErrValidation)
			}
			if err := shared.DecodeJSONFrom(io.LimitReader(part, shared.MaxJSONBodyBytes), &req); err != nil {
				return req, nil, jsonError(err)
			}
			hasData = true
		case imagePart:
			if len(uploads) == MaxImages {
				return req, nil, domain.NewValidationError(imagePart, fmt.Sprintf("at most %d images allowed", MaxImages), domain.ErrValidation)
			}
			up, err := readImage(part)
			if err != nil {
				return req, nil, err
			}
			uploads = append(uploads, up)
		}
		_ = part.Close()
	}

	if !hasData {
		return req, nil, domain.NewValidationError(dataPart, "part is required", domain.ErrValidation)
	}
	return req, uploads, nil
}

// readImage reads one image part, enforcing the size limit and sniffing the
// content type from the bytes rather than trusting the client.
func readImage(part *multipart.Part) (attach.Upload, error) {
	filename := strings.TrimSpace(part.FileName())
	if filename == "" {
		return attach.Upload{}, domain.NewValidationError(imagePart, "each image needs a filename", domain.ErrValidation)
	}

	payload, err := io.ReadAll(io.LimitReader(part, MaxImageBytes+1))
	if err != nil {
		return attach.Upload{}, multipartError(err)
	}
	if len(payload) > MaxImageBytes {
		return attach.Upload{}, domain.NewValidationError(imagePart,
			fmt.Sprintf("%q is larger than %d MiB", filename, MaxImageBytes>>20), domain.ErrValidation)
	}
	if len(payload) == 0 {
		return attach.Upload{}, domain.NewValidationError(imagePart, fmt.Sprintf("%q is empty", filename), domain.ErrValidation)
	}

	contentType := http.DetectContentType(payload)
	if !allowedImageTypes[contentType] {
		return attach.Upload{}, domain.NewValidationError(imagePart,
			fmt.Sprintf("%q is not a supported image", filename), domain.ErrValidation)
	}
	return attach.Upload{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func jsonError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return domain.NewValidationError(dataPart, "is not valid JSON: "+shortJSONError(err), domain.ErrValidation)
}

// shortJSONError keeps decoder messages that describe the document shape
// and drops anything else.
func shortJSONError(err error) string {
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field") || strings.HasPrefix(msg, "json: cannot unmarshal") {
		return strings.TrimPrefix(msg, "json: ")
	}
	return "malformed document"
}

func multipartError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}
	return domain.NewValidationError("body", "malformed multipart request", domain.ErrValidation)
}
