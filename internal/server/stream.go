package server

import (
	"fmt"
	"net/http"
	"time"
)

// framePoll is how often the stream checks for a new processed frame.
const framePoll = 40 * time.Millisecond

// FrameSource provides the latest processed frame as JPEG.
type FrameSource interface {
	LatestFrame() (jpeg []byte, seq uint64, ok bool)
}

// StreamHandler serves the processed frames as MJPEG.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a StreamHandler reading from source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP writes every new frame until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(framePoll)
	defer ticker.Stop()

	var last uint64
	for {
		if jpeg, seq, ok := h.source.LatestFrame(); ok && seq != last {
			last = seq
			if err := writeFrame(w, jpeg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeFrame(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}
