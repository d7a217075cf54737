package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dexpilot/internal/domain"
)

func TestHTTPJudge_ProduceOpinion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/opinion" {
			t.Errorf("path = %s, want /opinion", r.URL.Path)
		}

		var mctx MarketContext
		if err := json.NewDecoder(r.Body).Decode(&mctx); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if mctx.Token != "WETH" {
			t.Errorf("token = %s, want WETH", mctx.Token)
		}

		json.NewEncoder(w).Encode(opinionResponse{
			Action:     "BUY",
			Confidence: 0.82,
			Rationale:  "sustained inflows",
		})
	}))
	defer srv.Close()

	j := NewHTTPJudge("judge-a", srv.URL)

	op, err := j.ProduceOpinion(context.Background(), MarketContext{Token: "WETH"})
	if err != nil {
		t.Fatalf("ProduceOpinion failed: %v", err)
	}

	if op.SourceID != "judge-a" {
		t.Errorf("SourceID = %s, want judge-a", op.SourceID)
	}
	if op.Action != domain.ActionBuy {
		t.Errorf("Action = %s, want BUY", op.Action)
	}
	if op.Confidence != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", op.Confidence)
	}
	if op.Token != "WETH" {
		t.Errorf("Token = %s, want WETH", op.Token)
	}
}

func TestHTTPJudge_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(opinionResponse{Action: "HOLD", Confidence: 0.5})
	}))
	defer srv.Close()

	j := NewHTTPJudge("judge-a", srv.URL, WithMaxRetries(2))
	j.retryDelay = time.Millisecond

	op, err := j.ProduceOpinion(context.Background(), MarketContext{Token: "WETH"})
	if err != nil {
		t.Fatalf("ProduceOpinion failed: %v", err)
	}
	if op.Action != domain.ActionHold {
		t.Errorf("Action = %s, want HOLD", op.Action)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPJudge_UnknownActionIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(opinionResponse{Action: "MOON", Confidence: 0.99})
	}))
	defer srv.Close()

	j := NewHTTPJudge("judge-a", srv.URL)

	_, err := j.ProduceOpinion(context.Background(), MarketContext{Token: "WETH"})
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestHTTPJudge_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(opinionResponse{Action: "BUY", Confidence: 0.9})
	}))
	defer srv.Close()

	j := NewHTTPJudge("judge-a", srv.URL, WithMaxRetries(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := j.ProduceOpinion(ctx, MarketContext{Token: "WETH"})
	if err == nil {
		t.Fatal("expected error when context expires")
	}
}
