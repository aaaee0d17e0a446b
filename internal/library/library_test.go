package library

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestLibrary(store Store, limits Limits) (*Library, *[]Clip) {
	var evicted []Clip
	lib := New(store, limits, func(c []Clip) { evicted = append(evicted, c...) })
	tick := int64(1_700_000_000_000)
	lib.now = func() time.Time {
		tick += 1000
		return time.UnixMilli(tick)
	}
	return lib, &evicted
}

func clip(audio string) Clip {
	return Clip{Provider: ProviderGemini, Title: "t", Text: "hello", AudioData: audio, MimeType: "audio/wav"}
}

func TestLibraryNewestFirst(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	ctx := context.Background()
	for _, a := range []string{"AAAA", "BBBB", "CCCC"} {
		if _, err := lib.Add(ctx, clip(a)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	all, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].AudioData != "CCCC" || all[2].AudioData != "AAAA" {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestLibraryEvictsOldestBeyondCount(t *testing.T) {
	lib, evicted := newTestLibrary(NewInMemoryStore(), Limits{MaxClips: 2})
	ctx := context.Background()
	var first Clip
	for i, a := range []string{"AAAA", "BBBB", "CCCC"} {
		added, err := lib.Add(ctx, clip(a))
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		if i == 0 {
			first = added[0]
		}
	}
	all, _ := lib.List(ctx)
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if len(*evicted) != 1 || (*evicted)[0].ID != first.ID {
		t.Fatalf("evicted = %+v, want the first clip", *evicted)
	}
	if _, err := lib.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(evicted) err = %v, want ErrNotFound", err)
	}
}

func TestLibraryEvictsOldestBeyondSize(t *testing.T) {
	big := strings.Repeat("A", 4000)
	size := clip(big).StoredSize()
	lib, evicted := newTestLibrary(NewInMemoryStore(), Limits{MaxBytes: size*2 + size/2})
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := lib.Add(ctx, clip(big)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	all, _ := lib.List(ctx)
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if len(*evicted) != 2 {
		t.Fatalf("evicted %d, want 2", len(*evicted))
	}
}

func TestLibraryKeepsOversizedNewestClip(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{MaxBytes: 10})
	ctx := context.Background()
	added, err := lib.Add(ctx, clip("AAAAAAAA"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := lib.Get(ctx, added[0].ID); err != nil {
		t.Fatalf("newest clip evicted: %v", err)
	}
}

func TestLibraryRejectsEmptyAudio(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	if _, err := lib.Add(context.Background(), clip("")); !errors.Is(err, ErrInvalidClip) {
		t.Fatalf("err = %v, want ErrInvalidClip", err)
	}
}

func TestLibrarySetTranscriptOverwrites(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	ctx := context.Background()
	added, _ := lib.Add(ctx, clip("AAAA"))
	id := added[0].ID

	if _, err := lib.SetTranscript(ctx, id, []WordTimestamp{{"a", 0, 1}, {"b", 1, 2}}); err != nil {
		t.Fatalf("SetTranscript() error = %v", err)
	}
	got, err := lib.SetTranscript(ctx, id, []WordTimestamp{{"c", 0, 0.5}})
	if err != nil {
		t.Fatalf("SetTranscript() error = %v", err)
	}
	if len(got.Transcript) != 1 || got.Transcript[0].Word != "c" {
		t.Fatalf("transcript = %+v", got.Transcript)
	}
	stored, _ := lib.Get(ctx, id)
	if len(stored.Transcript) != 1 {
		t.Fatalf("stored transcript = %+v", stored.Transcript)
	}
	if _, err := lib.SetTranscript(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing clip err = %v", err)
	}
}

func TestLibrarySetTranscriptsIsAllOrNothing(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	ctx := context.Background()
	added, _ := lib.Add(ctx, clip("AAAA"), clip("BBBB"))

	_, err := lib.SetTranscripts(ctx, map[string][]WordTimestamp{
		added[0].ID: {{"a", 0, 1}},
		"missing":   {{"b", 0, 1}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got, _ := lib.Get(ctx, added[0].ID); len(got.Transcript) != 0 {
		t.Fatalf("transcript saved despite failure: %+v", got.Transcript)
	}

	out, err := lib.SetTranscripts(ctx, map[string][]WordTimestamp{
		added[0].ID: {{"a", 0, 1}},
		added[1].ID: {{"b", 0, 1}, {"c", 1, 2}},
	})
	if err != nil || len(out) != 2 {
		t.Fatalf("SetTranscripts() = %d clips, %v", len(out), err)
	}
	if got, _ := lib.Get(ctx, added[1].ID); len(got.Transcript) != 2 {
		t.Fatalf("second transcript = %+v", got.Transcript)
	}
}

func TestLibraryMeasuresEachClipOnce(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	measured := 0
	lib.measure = func(c Clip) int {
		measured++
		return c.StoredSize()
	}
	ctx := context.Background()
	want := 0
	for _, a := range []string{"AAAA", "BBBB", "CCCC", "DDDD", "EEEE"} {
		added, err := lib.Add(ctx, clip(a))
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		want += added[0].StoredSize()
	}
	if measured != 5 {
		t.Fatalf("measured %d times for 5 inserts, want 5", measured)
	}

	count, total, err := lib.Usage(ctx)
	if err != nil || count != 5 || total != want {
		t.Fatalf("Usage() = %d, %d, %v; want 5, %d", count, total, err, want)
	}
	if measured != 5 {
		t.Fatalf("Usage() re-measured clips: %d", measured)
	}

	all, _ := lib.List(ctx)
	updated, err := lib.SetTranscript(ctx, all[0].ID, []WordTimestamp{{"hello", 0, 1}})
	if err != nil {
		t.Fatalf("SetTranscript() error = %v", err)
	}
	_, total, _ = lib.Usage(ctx)
	if wantNow := want - all[0].StoredSize() + updated.StoredSize(); total != wantNow {
		t.Fatalf("Usage() after transcript = %d, want %d", total, wantNow)
	}
}

func TestLibraryGroupOrdersParts(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	ctx := context.Background()
	parts := []Clip{clip("CCCC"), clip("AAAA"), clip("BBBB")}
	for i, n := range []int{3, 1, 2} {
		parts[i].GroupID = "g1"
		parts[i].PartNumber = n
	}
	if _, err := lib.Add(ctx, parts...); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := lib.Add(ctx, clip("DDDD")); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	group, err := lib.Group(ctx, "g1")
	if err != nil {
		t.Fatalf("Group() error = %v", err)
	}
	if len(group) != 3 || group[0].AudioData != "AAAA" || group[2].AudioData != "CCCC" {
		t.Fatalf("group = %+v", group)
	}
}

func TestLibraryDelete(t *testing.T) {
	lib, _ := newTestLibrary(NewInMemoryStore(), Limits{})
	ctx := context.Background()
	added, _ := lib.Add(ctx, clip("AAAA"))
	if err := lib.Delete(ctx, added[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := lib.Delete(ctx, added[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete() err = %v", err)
	}
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]WordTimestamp{{"Hello", 0, 0.4}, {"world.", 0.4, 1.25}})
	want := "0.00s - 0.40s: Hello\n0.40s - 1.25s: world.\n"
	if got != want {
		t.Fatalf("FormatTranscript() = %q, want %q", got, want)
	}
}

func TestCredentialsMergePrefersStored(t *testing.T) {
	c := Credentials{Gemini: "stored"}.Merge(Credentials{Gemini: "env-g", GCloud: "env-c"})
	if c.Gemini != "stored" || c.GCloud != "env-c" {
		t.Fatalf("merged = %+v", c)
	}
	if c.For(ProviderChirp) != "env-c" {
		t.Fatalf("For(chirp) = %q", c.For(ProviderChirp))
	}
}
