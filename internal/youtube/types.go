package youtube

import (
	"encoding/xml"
	"errors"
	"strings"
)

var (
	ErrInvalidURL          = errors.New("invalid YouTube URL")
	ErrVideoUnavailable    = errors.New("video unavailable")
	ErrNoCaptions          = errors.New("no captions available for video")
	ErrLanguageUnavailable = errors.New("caption language unavailable")
	ErrTooManyRequests     = errors.New("youtube is rate limiting requests")
)

// Track describes one caption track offered for a video.
type Track struct {
	LanguageCode   string `json:"language_code"`
	Name           string `json:"name"`
	Generated      bool   `json:"generated"`
	IsTranslatable bool   `json:"is_translatable"`

	baseURL string
}

// captionsJSON is the "captions" object embedded in the watch page.
type captionsJSON struct {
	PlayerCaptionsTracklistRenderer struct {
		CaptionTracks        []apiTrack       `json:"captionTracks"`
		TranslationLanguages []apiTranslation `json:"translationLanguages"`
	} `json:"playerCaptionsTracklistRenderer"`
}

type apiTrack struct {
	BaseURL        string  `json:"baseUrl"`
	LanguageCode   string  `json:"languageCode"`
	Kind           string  `json:"kind"`
	IsTranslatable bool    `json:"isTranslatable"`
	Name           apiText `json:"name"`
}

type apiTranslation struct {
	LanguageCode string  `json:"languageCode"`
	LanguageName apiText `json:"languageName"`
}

type apiText struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t apiText) String() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var b strings.Builder
	for _, r := range t.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// timedText is the XML caption document served from a track's base URL.
type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}
