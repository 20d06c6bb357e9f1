package entropy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSeedFromRandomOrg(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["method"] != "generateIntegers" {
			t.Errorf("method = %v", req["method"])
		}
		w.Write([]byte(`{"jsonrpc":"2.0","result":{"random":{"data":[1,2]}},"id":1}`))
	}))
	defer ts.Close()

	c := NewClient("key")
	c.endpoint = ts.URL
	if got := Seed(context.Background(), c); got != 1<<30|2 {
		t.Errorf("seed = %d, want %d", got, int64(1<<30|2))
	}
}

func TestSeedFallsBackOnAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"bad key"},"id":1}`))
	}))
	defer ts.Close()

	c := NewClient("key")
	c.endpoint = ts.URL
	if got := Seed(context.Background(), c); got < 0 {
		t.Errorf("fallback seed = %d, want non-negative", got)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.Enabled() || NewClient("") != nil {
		t.Error("client without key should be disabled")
	}
	if Seed(context.Background(), nil) < 0 {
		t.Error("crypto seed should be non-negative")
	}
}
