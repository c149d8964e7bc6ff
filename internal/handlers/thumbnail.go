package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"native-thumbnail/internal/logging"
	"native-thumbnail/internal/thumbnail"
	"native-thumbnail/internal/writer"
)

const maxRequestBody = 64 << 10

// ThumbnailRequest is the JSON body of POST /api/thumbnail.
type ThumbnailRequest struct {
	SrcFile  string `json:"srcFile"`
	DestFile string `json:"destFile"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
	Format   string `json:"format"`
	Mode     string `json:"mode"`
	Async    bool   `json:"async"`
}

// ThumbnailResponse reports a finished request. Success false with no Error
// means the content is not supported.
type ThumbnailResponse struct {
	Success   bool       `json:"success"`
	RequestID string     `json:"requestId,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request. Code is the failure category.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// AcceptedResponse is returned for async requests.
type AcceptedResponse struct {
	RequestID string `json:"requestId"`
}

func (b ThumbnailRequest) toRequest() (thumbnail.Request, error) {
	format, err := writer.ParseFormat(b.Format)
	if err != nil {
		return thumbnail.Request{}, err
	}
	mode, err := thumbnail.ParseMode(b.Mode)
	if err != nil {
		return thumbnail.Request{}, err
	}
	req := thumbnail.Request{
		Source:      b.SrcFile,
		Destination: b.DestFile,
		Size:        b.Size,
		Width:       b.Width,
		Height:      b.Height,
		Format:      format,
		Mode:        mode,
	}
	return req, req.Validate()
}

// ExtractThumbnail handles POST /api/thumbnail.
func (h *Handlers) ExtractThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx, trail := logging.WithTrail(r.Context())

	var body ThumbnailRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeFailure(w, trail.ID(), thumbnail.Fail(thumbnail.InvalidRequest, fmt.Errorf("invalid request body: %w", err)).Failure)
		return
	}

	req, err := body.toRequest()
	if err != nil {
		writeFailure(w, trail.ID(), thumbnail.Fail(thumbnail.InvalidRequest, err).Failure)
		return
	}

	if body.Async {
		// The request outlives the HTTP exchange but keeps its trail.
		done := h.dispatcher.Submit(context.WithoutCancel(ctx), req)
		h.pending.Add(1)
		go func() {
			defer h.pending.Done()
			out := <-done
			if out.Failure != nil {
				trail.Warnf("async request finished: %v", out.Failure)
				return
			}
			trail.Infof("async request finished: produced=%v", out.Produced)
		}()

		respond(w, http.StatusAccepted, AcceptedResponse{RequestID: trail.ID()})
		return
	}

	out := <-h.dispatcher.Submit(ctx, req)
	if out.Failure != nil {
		writeFailure(w, trail.ID(), out.Failure)
		return
	}

	respond(w, http.StatusOK, ThumbnailResponse{Success: out.Produced, RequestID: trail.ID()})
}

func writeFailure(w http.ResponseWriter, requestID string, f *thumbnail.Failure) {
	status := f.Category.HTTPStatus()
	var tooLarge *http.MaxBytesError
	if errors.As(f.Err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	respond(w, status, ThumbnailResponse{
		RequestID: requestID,
		Error: &ErrorBody{
			Code:       string(f.Category),
			Message:    f.Detail,
			Diagnostic: f.Code,
		},
	})
}
