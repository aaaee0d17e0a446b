package library

import (
	"context"
	"errors"
	"testing"
)

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	clips := []Clip{
		{ID: "a", CreatedAt: 1, AudioData: "AAAA", MimeType: "audio/wav"},
		{ID: "b", CreatedAt: 2, AudioData: "BBBB", MimeType: "audio/mp3",
			Transcript: []WordTimestamp{{"hi", 0, 0.3}}},
	}
	if err := s.PutClips(ctx, clips); err != nil {
		t.Fatalf("PutClips() error = %v", err)
	}
	if err := s.SaveSettings(ctx, AppSettings{WordLimit: 300, LongTextMode: true}); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if err := s.SaveCredentials(ctx, Credentials{Gemini: "g-key"}); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewBadgerStore(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	all, err := s.ListClips(ctx)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("clips = %+v", all)
	}
	if len(all[0].Transcript) != 1 || all[0].Transcript[0].Word != "hi" {
		t.Fatalf("transcript lost: %+v", all[0].Transcript)
	}

	settings, err := s.LoadSettings(ctx)
	if err != nil || settings.WordLimit != 300 || !settings.LongTextMode {
		t.Fatalf("settings = %+v, %v", settings, err)
	}
	creds, err := s.LoadCredentials(ctx)
	if err != nil || creds.Gemini != "g-key" {
		t.Fatalf("creds = %+v, %v", creds, err)
	}
}

func TestBadgerStoreUpsertAndDelete(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.PutClips(ctx, []Clip{{ID: "a", CreatedAt: 1, Title: "old"}}); err != nil {
		t.Fatalf("PutClips() error = %v", err)
	}
	if err := s.PutClips(ctx, []Clip{{ID: "a", CreatedAt: 1, Title: "new"}}); err != nil {
		t.Fatalf("PutClips() error = %v", err)
	}
	c, err := s.GetClip(ctx, "a")
	if err != nil || c.Title != "new" {
		t.Fatalf("GetClip() = %+v, %v", c, err)
	}
	if err := s.DeleteClips(ctx, []string{"a"}); err != nil {
		t.Fatalf("DeleteClips() error = %v", err)
	}
	if _, err := s.GetClip(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetClip(deleted) err = %v", err)
	}
}

func TestBadgerStoreDefaultsSettings(t *testing.T) {
	s, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	defer s.Close()
	settings, err := s.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if settings != DefaultAppSettings() {
		t.Fatalf("settings = %+v", settings)
	}
}
