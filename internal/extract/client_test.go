package extract_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizlink-service/internal/domain"
	"quizlink-service/internal/extract"
)

func TestExtractParsesQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"imageRef":"img-1"}` {
			t.Errorf("unexpected request body %s", body)
		}
		io.WriteString(w, `{"questions":[{"prompt":"2+2?","choices":["3","4"],"correctChoiceIndex":1}]}`)
	}))
	defer srv.Close()

	client := extract.NewClient(srv.URL, "key-123", time.Second)
	questions, err := client.Extract(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if questions[0].Prompt != "2+2?" || questions[0].CorrectChoiceIndex != 1 {
		t.Fatalf("unexpected question %+v", questions[0])
	}
}

func TestExtractUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := extract.NewClient(srv.URL, "", time.Second)
	if _, err := client.Extract(context.Background(), "img-1"); domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
}

func TestExtractTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	client := extract.NewClient(srv.URL, "", 50*time.Millisecond)
	if _, err := client.Extract(context.Background(), "img-1"); domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable on timeout, got %v", err)
	}
}

func TestExtractMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	client := extract.NewClient(srv.URL, "", time.Second)
	if _, err := client.Extract(context.Background(), "img-1"); domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
}
