package voice

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ent0n29/voiceforge/internal/library"
)

func TestParseSpeakerTurns(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []Turn
	}{
		{
			name: "markers alternate speakers",
			in:   "[1] Hi there. [2] Hello! [1] Bye.",
			want: []Turn{{"A", "Hi there."}, {"B", "Hello!"}, {"A", "Bye."}},
		},
		{
			name: "leading text belongs to first speaker",
			in:   "Intro line.\n[2] Reply.",
			want: []Turn{{"A", "Intro line."}, {"B", "Reply."}},
		},
		{
			name: "no markers is one turn",
			in:   "  Just one voice.  ",
			want: []Turn{{"A", "Just one voice."}},
		},
		{
			name: "bare digits are text",
			in:   "[2] Count 1 2 3",
			want: []Turn{{"B", "Count 1 2 3"}},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := ParseSpeakerTurns(tc.in, "A", "B")
			if len(got) != len(tc.want) {
				t.Fatalf("turns = %+v, want %+v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("turn %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestGeminiWrapsPCMInWAV(t *testing.T) {
	pcm := []byte{0x10, 0x00, 0xf0, 0xff, 0x00, 0x40}
	var gotKey, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "ignored"},
					map[string]any{"inlineData": map[string]any{
						"mimeType": "audio/L16;codec=pcm;rate=16000",
						"data":     base64.StdEncoding.EncodeToString(pcm),
					}},
				}},
			}},
		})
	}))
	defer srv.Close()

	g := NewGeminiSynthesizer("g-key", Options{GeminiEndpoint: srv.URL})
	res, err := g.Synthesize(context.Background(), Request{Text: "Hello", Voice: "Kore", Language: "en-US"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if gotKey != "g-key" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotPath != "/"+DefaultGeminiModel+":generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if res.MimeType != "audio/wav" {
		t.Fatalf("mime = %q", res.MimeType)
	}
	if string(res.Audio[:4]) != "RIFF" || len(res.Audio) != 44+len(pcm) {
		t.Fatalf("audio is not a wrapped WAV: %d bytes", len(res.Audio))
	}
	if rate := binary.LittleEndian.Uint32(res.Audio[24:]); rate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", rate)
	}
	speech := gotBody["generationConfig"].(map[string]any)["speechConfig"].(map[string]any)
	name := speech["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)["voiceName"]
	if name != "Kore" {
		t.Fatalf("voiceName = %v", name)
	}
}

func TestGeminiMultiSpeakerRequest(t *testing.T) {
	var body geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"audio/mpeg","data":"AAEC"}}]}}]}`)
	}))
	defer srv.Close()

	g := NewGeminiSynthesizer("k", Options{GeminiEndpoint: srv.URL})
	res, err := g.Synthesize(context.Background(), Request{
		Text: "[1] Hi. [2] Hey.", Voice: "Kore", SecondVoice: "Puck", MultiSpeaker: true,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.MimeType != "audio/mpeg" || len(res.Audio) != 3 {
		t.Fatalf("non-PCM audio not passed through: %+v", res)
	}
	want := "<speaker name=\"Kore\">Hi.</speaker>\n<speaker name=\"Puck\">Hey.</speaker>"
	if got := body.Contents[0].Parts[0].Text; got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
	cfg := body.GenerationConfig.SpeechConfig.MultiSpeakerVoiceConfig
	if cfg == nil || len(cfg.SpeakerVoiceConfigs) != 2 || cfg.SpeakerVoiceConfigs[1].VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Fatalf("speaker configs = %+v", cfg)
	}
}

func TestGeminiMultiSpeakerFallsBackToOneVoice(t *testing.T) {
	g := NewGeminiSynthesizer("k", Options{})
	cases := []struct {
		name   string
		second string
	}{
		{"no second voice", ""},
		{"same voice twice", "kore"},
	}
	for _, tc := range cases {
		body := g.buildRequest(Request{
			Text: "[1] Hi. [2] Hey.", Voice: "Kore", SecondVoice: tc.second, MultiSpeaker: true,
		})
		speech := body.GenerationConfig.SpeechConfig
		if speech.MultiSpeakerVoiceConfig != nil {
			t.Fatalf("%s: multi-speaker config sent: %+v", tc.name, speech.MultiSpeakerVoiceConfig)
		}
		if speech.VoiceConfig == nil || speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
			t.Fatalf("%s: voice config = %+v", tc.name, speech.VoiceConfig)
		}
		if got := body.Contents[0].Parts[0].Text; got != "Hi.\nHey." {
			t.Fatalf("%s: prompt = %q", tc.name, got)
		}
	}

	if err := (Request{Text: "hi", Voice: "Kore", MultiSpeaker: true}).validate(); err != nil {
		t.Fatalf("validate() rejected a single-voice multi-speaker request: %v", err)
	}
}

func TestGeminiErrors(t *testing.T) {
	var calls atomic.Int32
	status := http.StatusTooManyRequests
	body := `{"error":{"message":"Quota exceeded"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	defer srv.Close()
	ctx := context.Background()
	req := Request{Text: "hi", Voice: "Kore"}

	_, err := NewGeminiSynthesizer("", Options{GeminiEndpoint: srv.URL}).Synthesize(ctx, req)
	var ce *CredentialError
	if !errors.As(err, &ce) || ce.Provider != KindGemini || !errors.Is(err, ErrCredentialRequired) {
		t.Fatalf("missing key err = %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("network called without a key")
	}

	_, err = NewGeminiSynthesizer("k", Options{GeminiEndpoint: srv.URL}).Synthesize(ctx, Request{Voice: "Kore"})
	if !errors.Is(err, ErrInvalidRequest) || calls.Load() != 0 {
		t.Fatalf("empty text err = %v (calls %d)", err, calls.Load())
	}

	g := NewGeminiSynthesizer("k", Options{GeminiEndpoint: srv.URL})
	_, err = g.Synthesize(ctx, req)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Message != "Quota exceeded" || !pe.Retryable || !IsRetryable(err) {
		t.Fatalf("provider err = %#v", err)
	}

	status, body = http.StatusBadRequest, "<html>nope</html>"
	_, err = g.Synthesize(ctx, req)
	if !errors.As(err, &pe) || pe.Message != "Gemini API error" || pe.Retryable {
		t.Fatalf("fallback err = %#v", err)
	}

	status, body = http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"no audio"}]}}]}`
	if _, err = g.Synthesize(ctx, req); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("no audio err = %v", err)
	}
}

func TestChirpRequestShape(t *testing.T) {
	var body chirpRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text:synthesize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"audioContent":"SUQzBA=="}`)
	}))
	defer srv.Close()

	c := NewChirpSynthesizer("c-key", Options{ChirpEndpoint: srv.URL})
	res, err := c.Synthesize(context.Background(), Request{Text: "Hola", Voice: "Kore", Language: "es-ES", Pace: 75})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if res.MimeType != "audio/mp3" || string(res.Audio) != "ID3\x04" {
		t.Fatalf("result = %+v", res)
	}
	if body.Voice.Name != "es-ES-Chirp3-HD-Kore" || body.Voice.LanguageCode != "es-ES" {
		t.Fatalf("voice = %+v", body.Voice)
	}
	if body.AudioConfig.AudioEncoding != "MP3" || body.AudioConfig.SpeakingRate != 1.5 {
		t.Fatalf("audioConfig = %+v", body.AudioConfig)
	}
}

func TestChirpVoiceName(t *testing.T) {
	if got := ChirpVoiceName("en-US", "Puck"); got != "en-US-Chirp3-HD-Puck" {
		t.Fatalf("short name = %q", got)
	}
	if got := ChirpVoiceName("en-US", "en-GB-Chirp3-HD-Puck"); got != "en-GB-Chirp3-HD-Puck" {
		t.Fatalf("qualified name = %q", got)
	}
}

func TestNewSynthesizerPicksAdapter(t *testing.T) {
	creds := library.Credentials{Gemini: "g", GCloud: "c"}
	s, err := NewSynthesizer(KindGemini, creds, Options{})
	if _, ok := s.(*GeminiSynthesizer); !ok || err != nil {
		t.Fatalf("gemini = %T, %v", s, err)
	}
	s, err = NewSynthesizer(KindChirp, creds, Options{})
	if _, ok := s.(*ChirpSynthesizer); !ok || err != nil {
		t.Fatalf("chirp = %T, %v", s, err)
	}
	if _, err := NewSynthesizer("polly", creds, Options{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("unknown kind err = %v", err)
	}
}

func TestSpeechTranscribe(t *testing.T) {
	var body speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speech:recognize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"results":[
			{"alternatives":[{"words":[{"word":"Hello","startTime":"0s","endTime":"0.400s"},{"word":"world.","startTime":"0.400s","endTime":"1.200s"}]},{"words":[{"word":"ignored"}]}]},
			{"alternatives":[{"words":[{"word":"Again","endTime":"2s"}]}]}
		]}`)
	}))
	defer srv.Close()

	tr := NewSpeechTranscriber("s-key", Options{SpeechEndpoint: srv.URL})
	words, err := tr.Transcribe(context.Background(), []byte("ID3audio"), "audio/mp3", "en-GB")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	want := []library.WordTimestamp{{Word: "Hello", StartTime: 0, EndTime: 0.4}, {Word: "world.", StartTime: 0.4, EndTime: 1.2}, {Word: "Again", StartTime: 0, EndTime: 2}}
	if len(words) != len(want) {
		t.Fatalf("words = %+v", words)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("word %d = %+v, want %+v", i, words[i], want[i])
		}
	}
	if body.Config.Encoding != "MP3" || body.Config.SampleRateHertz != 24000 || body.Config.Model != "latest_long" {
		t.Fatalf("config = %+v", body.Config)
	}
	if !body.Config.EnableWordTimeOffsets || !body.Config.EnableAutomaticPunctuation || body.Config.LanguageCode != "en-GB" {
		t.Fatalf("config flags = %+v", body.Config)
	}
	if body.Audio.Content != base64.StdEncoding.EncodeToString([]byte("ID3audio")) {
		t.Fatalf("audio content = %q", body.Audio.Content)
	}
}

func TestSpeechRejectsOversizedBeforeCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	tr := NewSpeechTranscriber("k", Options{SpeechEndpoint: srv.URL})
	_, err := tr.Transcribe(context.Background(), make([]byte, MaxTranscribeBytes+1), "audio/wav", "en-US")
	var se *SizeLimitError
	if !errors.As(err, &se) || se.Limit != MaxTranscribeBytes {
		t.Fatalf("err = %v, want *SizeLimitError", err)
	}
	if !strings.Contains(err.Error(), "unmerged part") {
		t.Fatalf("error lacks guidance: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("network called for oversized payload")
	}
	if IsRetryable(err) {
		t.Fatalf("size limit error marked retryable")
	}
}

func TestSpeechEncoding(t *testing.T) {
	if speechEncoding("audio/mp3") != "MP3" || speechEncoding("audio/wav") != "LINEAR16" {
		t.Fatalf("unexpected encodings")
	}
	if parseOffset("1.200s") != 1.2 || parseOffset("") != 0 || parseOffset("junk") != 0 {
		t.Fatalf("unexpected offsets")
	}
}

func TestSpeakingDirection(t *testing.T) {
	if got := speakingDirection("", 50); got != "" {
		t.Fatalf("neutral direction = %q", got)
	}
	got := speakingDirection("Warm, clear", 30)
	if got != "Read the following in a warm, clear tone and at a slow, unhurried pace" {
		t.Fatalf("direction = %q", got)
	}
}
