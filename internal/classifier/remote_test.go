package classifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestNewRemote_Validation(t *testing.T) {
	for _, endpoint := range []string{"", "not a url", "/relative"} {
		if _, err := NewRemote(RemoteConfig{Endpoint: endpoint}, NewPreprocessor(0, false)); err == nil {
			t.Errorf("NewRemote(%q) should fail", endpoint)
		}
	}

	r, err := NewRemote(RemoteConfig{Endpoint: "http://localhost:8000/"}, NewPreprocessor(0, false))
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}
	if r.predictURL != "http://localhost:8000/predict" {
		t.Errorf("predictURL = %q", r.predictURL)
	}
	if r.timeout != DefaultRemoteTimeout {
		t.Errorf("timeout = %v, want default", r.timeout)
	}
}

func TestRemote_Predict(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr bool
	}{
		{name: "letter", status: http.StatusOK, body: `{"payload": 18}`, want: 18},
		{name: "no hand", status: http.StatusOK, body: `{"payload": 26}`, want: 26},
		{name: "zero index", status: http.StatusOK, body: `{"payload": 0}`, want: 0},
		{name: "missing payload", status: http.StatusOK, body: `{}`, wantErr: true},
		{name: "bad json", status: http.StatusOK, body: `nope`, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: `model crashed`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/predict" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
					t.Errorf("Content-Type = %q", ct)
				}
				body, _ := io.ReadAll(r.Body)
				if string(body) != "jpeg-bytes" {
					t.Errorf("body = %q", body)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			r, err := NewRemote(RemoteConfig{Endpoint: srv.URL}, NewPreprocessor(0, false))
			if err != nil {
				t.Fatalf("NewRemote() error = %v", err)
			}
			defer r.Close()

			got, err := r.predict(context.Background(), []byte("jpeg-bytes"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("predict() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("predict() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRemote_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	r, err := NewRemote(RemoteConfig{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}, NewPreprocessor(0, false))
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}

	_, err = r.predict(context.Background(), []byte("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("predict() error = %v, want deadline exceeded", err)
	}
}

func TestRemote_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		// JPEG start-of-image marker.
		if len(body) < 2 || body[0] != 0xFF || body[1] != 0xD8 {
			t.Errorf("body is not a JPEG")
		}
		io.WriteString(w, `{"payload": 1}`)
	}))
	defer srv.Close()

	r, err := NewRemote(RemoteConfig{Endpoint: srv.URL}, NewPreprocessor(0, false))
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}

	img := gocv.NewMatWithSize(DefaultInputSize, DefaultInputSize, gocv.MatTypeCV8UC3)
	defer img.Close()

	got, err := r.Classify(context.Background(), &img)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got != 1 {
		t.Errorf("Classify() = %d, want 1", got)
	}

	if _, err := r.Classify(context.Background(), nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("Classify(nil) error = %v, want ErrEmptyFrame", err)
	}
}
