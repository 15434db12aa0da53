package store_test

import (
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"

	"todo/internal/service"
	"todo/internal/store"
)

func TestBoltKV_PutGetDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	kv, err := store.OpenBolt(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer kv.Close()

	if _, ok, err := kv.Get("missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Put("k", []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := kv.Get("k")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("expected v1, got %q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get("k"); ok {
		t.Error("expected key to be deleted")
	}
}

func TestBoltKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	kv, err := store.OpenBolt(path, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	creds := store.NewCredentials(kv)
	if err := creds.SaveTokens(&oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	kv.Close()

	kv, err = store.OpenBolt(path, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	tok, err := store.NewCredentials(kv).Tokens()
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if tok == nil || tok.AccessToken != "a1" || tok.RefreshToken != "r1" {
		t.Errorf("unexpected token after reopen: %+v", tok)
	}
}

func TestCredentials_ClearTokensRemovesUser(t *testing.T) {
	creds := store.NewCredentials(store.NewMemoryKV())
	_ = creds.SaveTokens(&oauth2.Token{AccessToken: "a", RefreshToken: "r"})
	_ = creds.SaveUser(service.User{Username: "alice"})

	if err := creds.ClearTokens(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if tok, _ := creds.Tokens(); tok != nil {
		t.Errorf("expected no token, got %+v", tok)
	}
	if user, _ := creds.User(); user != nil {
		t.Errorf("expected no user, got %+v", user)
	}
}

func TestCredentials_LoadFiltersMergesOverDefaults(t *testing.T) {
	kv := store.NewMemoryKV()
	_ = kv.Put(store.FiltersKey, []byte(`{"search":"milk"}`))
	creds := store.NewCredentials(kv)

	f := store.FilterSettings{Status: "all", Priority: "all", Page: 1}
	ok, err := creds.LoadFilters(&f)
	if err != nil || !ok {
		t.Fatalf("expected stored filters, got ok=%v err=%v", ok, err)
	}
	want := store.FilterSettings{Search: "milk", Status: "all", Priority: "all", Page: 1}
	if f != want {
		t.Errorf("expected %+v, got %+v", want, f)
	}
}

func TestCredentials_LoadFiltersCorruptIsDeleted(t *testing.T) {
	kv := store.NewMemoryKV()
	_ = kv.Put(store.FiltersKey, []byte(`{not json`))
	creds := store.NewCredentials(kv)

	f := store.FilterSettings{Status: "all", Priority: "all", Page: 1}
	ok, err := creds.LoadFilters(&f)
	if ok {
		t.Error("expected ok=false for corrupt record")
	}
	if !errors.Is(err, store.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
	if f.Status != "all" || f.Page != 1 {
		t.Errorf("defaults should be untouched, got %+v", f)
	}
	if _, present, _ := kv.Get(store.FiltersKey); present {
		t.Error("corrupt record should have been removed")
	}
}

func TestMemoryKV_Closed(t *testing.T) {
	kv := store.NewMemoryKV()
	kv.Close()
	if err := kv.Put("k", nil); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
