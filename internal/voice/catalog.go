package voice

import "strings"

// VoiceInfo describes a prebuilt voice.
type VoiceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Gender      string `json:"gender,omitempty"`
}

// Language is a supported language code.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Catalog lists the voices and languages a provider accepts.
type Catalog struct {
	Provider     Kind        `json:"provider"`
	DefaultVoice string      `json:"defaultVoice"`
	Voices       []VoiceInfo `json:"voices"`
	Languages    []Language  `json:"languages"`
}

var geminiVoices = []VoiceInfo{
	{"Zephyr", "Bright", ""}, {"Puck", "Upbeat", ""}, {"Charon", "Informative", ""},
	{"Kore", "Firm", ""}, {"Fenrir", "Excitable", ""}, {"Leda", "Youthful", ""},
	{"Orus", "Firm", ""}, {"Aoede", "Breezy", ""}, {"Callirrhoe", "Easy-going", ""},
	{"Autonoe", "Bright", ""}, {"Enceladus", "Breathy", ""}, {"Iapetus", "Clear", ""},
	{"Umbriel", "Easy-going", ""}, {"Algieba", "Smooth", ""}, {"Despina", "Smooth", ""},
	{"Erinome", "Clear", ""}, {"Algenib", "Gravelly", ""}, {"Rasalgethi", "Informative", ""},
	{"Laomedeia", "Upbeat", ""}, {"Achernar", "Soft", ""}, {"Alnilam", "Firm", ""},
	{"Schedar", "Even", ""}, {"Gacrux", "Mature", ""}, {"Pulcherrima", "Forward", ""},
	{"Achird", "Friendly", ""}, {"Zubenelgenubi", "Casual", ""}, {"Vindemiatrix", "Gentle", ""},
	{"Sadachbia", "Lively", ""}, {"Sadaltager", "Knowledgeable", ""}, {"Sulafat", "Warm", ""},
}

var chirpVoices = []VoiceInfo{
	{"Achernar", "Soft", "female"}, {"Achird", "Friendly", "male"}, {"Algenib", "Gravelly", "male"},
	{"Algieba", "Smooth", "male"}, {"Alnilam", "Firm", "male"}, {"Aoede", "Breezy", "female"},
	{"Autonoe", "Bright", "female"}, {"Callirrhoe", "Easy-going", "female"}, {"Charon", "Informative", "male"},
	{"Despina", "Smooth", "female"}, {"Enceladus", "Breathy", "male"}, {"Erinome", "Clear", "female"},
	{"Fenrir", "Excitable", "male"}, {"Gacrux", "Mature", "male"}, {"Iapetus", "Clear", "male"},
	{"Kore", "Firm", "female"}, {"Laomedeia", "Upbeat", "female"}, {"Leda", "Youthful", "female"},
	{"Orus", "Firm", "male"}, {"Puck", "Upbeat", "male"}, {"Pulcherrima", "Forward", "female"},
	{"Rasalgethi", "Informative", "male"}, {"Sadachbia", "Lively", "male"}, {"Sadaltager", "Knowledgeable", "male"},
	{"Schedar", "Even", "male"}, {"Sulafat", "Warm", "male"}, {"Umbriel", "Easy-going", "male"},
	{"Vindemiatrix", "Gentle", "female"}, {"Zephyr", "Bright", "female"}, {"Zubenelgenubi", "Casual", "male"},
}

var chirpLanguages = []Language{
	{"en-US", "English (US)"}, {"en-GB", "English (UK)"}, {"en-AU", "English (Australia)"},
	{"en-IN", "English (India)"}, {"es-ES", "Spanish (Spain)"}, {"es-US", "Spanish (US)"},
	{"fr-FR", "French"}, {"de-DE", "German"}, {"it-IT", "Italian"},
	{"pt-BR", "Portuguese (Brazil)"}, {"ja-JP", "Japanese"}, {"ko-KR", "Korean"},
	{"cmn-CN", "Chinese (Mandarin)"}, {"ar-XA", "Arabic"}, {"bn-IN", "Bengali"},
	{"hi-IN", "Hindi"},
}

var geminiLanguages = []Language{
	{"en-US", "English (US)"}, {"hi-IN", "Hindi"}, {"es-ES", "Spanish"},
	{"fr-FR", "French"}, {"de-DE", "German"}, {"ja-JP", "Japanese"},
}

// CatalogFor returns a copy of the provider's catalog.
func CatalogFor(kind Kind) (Catalog, bool) {
	switch kind {
	case KindGemini:
		return Catalog{
			Provider:     KindGemini,
			DefaultVoice: "Kore",
			Voices:       append([]VoiceInfo(nil), geminiVoices...),
			Languages:    append([]Language(nil), geminiLanguages...),
		}, true
	case KindChirp:
		return Catalog{
			Provider:     KindChirp,
			DefaultVoice: "Kore",
			Voices:       append([]VoiceInfo(nil), chirpVoices...),
			Languages:    append([]Language(nil), chirpLanguages...),
		}, true
	default:
		return Catalog{}, false
	}
}

// HasVoice reports whether name is a known voice, ignoring case.
func (c Catalog) HasVoice(name string) bool {
	for _, v := range c.Voices {
		if strings.EqualFold(v.Name, name) {
			return true
		}
	}
	return false
}
