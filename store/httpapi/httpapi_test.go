package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetlink/nanoshare/store"
)

func TestClient(t *testing.T) {
	var lastReq request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want, have := "Bearer test-key", r.Header.Get("Authorization"); want != have {
			t.Errorf("wanted: %s; have: %s", want, have)
		}
		lastReq = request{}
		if err := json.NewDecoder(r.Body).Decode(&lastReq); err != nil {
			t.Fatal(err)
		}
		resp := new(response)
		switch {
		case lastReq.Method == methodGet && lastReq.TypeName == typeNameAsset:
			resp.Result, _ = json.Marshal([]*store.Asset{{ID: "b1", SerialNumber: "SN123"}})
		case lastReq.Method == methodAdd && lastReq.TypeName == typeNameShare:
			resp.Result, _ = json.Marshal("share-1")
		case lastReq.Method == methodGet && lastReq.TypeName == typeNameShare:
			resp.Result, _ = json.Marshal([]*store.Share{})
		case lastReq.Method == methodSet && lastReq.TypeName == typeNameSetting:
			resp.Error = &apiError{Message: "stale settings version"}
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "test-key")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	a, err := c.RetrieveAssetBySerial(ctx, "SN123")
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || a.ID != "b1" {
		t.Fatalf("unexpected asset: %+v", a)
	}
	if want, have := "SN123", lastReq.Search.(map[string]interface{})["serialNumber"]; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}

	id, err := c.CreateShare(ctx, &store.Share{SerialNumber: "SN123"})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := "share-1", id; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}

	// absence is (nil, nil), not an error
	sh, err := store.FirstShare(ctx, c, &store.ShareFilter{AdminID: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if sh != nil {
		t.Fatal("expected absence")
	}
	if want, have := "none", lastReq.Search.(map[string]interface{})["adminId"]; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}

	// store-side refusal maps to ErrRemoteRejected
	err = c.StoreAutoAccept(ctx, &store.AutoAcceptSetting{Enabled: true, Version: "1"})
	if !errors.Is(err, store.ErrRemoteRejected) {
		t.Errorf("expected ErrRemoteRejected; have: %v", err)
	}
}

func TestClientStatusMapping(t *testing.T) {
	for _, test := range []struct {
		name   string
		status int
		want   error
	}{
		{"server error", http.StatusInternalServerError, store.ErrRemoteUnavailable},
		{"gateway", http.StatusBadGateway, store.ErrRemoteUnavailable},
		{"client error", http.StatusUnprocessableEntity, store.ErrRemoteRejected},
	} {
		t.Run(test.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(test.status)
			}))
			defer srv.Close()

			c, err := New(srv.URL, "")
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.RetrieveAsset(context.Background(), "b1")
			if !errors.Is(err, test.want) {
				t.Errorf("wanted: %v; have: %v", test.want, err)
			}
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	c, err := New("http://127.0.0.1:1", "")
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.RetrieveAsset(context.Background(), "b1")
	if !errors.Is(err, store.ErrRemoteUnavailable) {
		t.Errorf("expected ErrRemoteUnavailable; have: %v", err)
	}
}
