package usecase

import (
	"fmt"
	"time"
)

// Phrases are the texts shown on terminal screens
type Phrases struct {
	Morning          string
	Afternoon        string
	Evening          string
	BadgeUnknown     string
	BadgeDeactivated string
}

var (
	EnglishPhrases = Phrases{
		Morning:          "Good morning",
		Afternoon:        "Good afternoon",
		Evening:          "Good evening",
		BadgeUnknown:     "Badge not recognized",
		BadgeDeactivated: "Badge deactivated",
	}

	FrenchPhrases = Phrases{
		Morning:          "Bonjour",
		Afternoon:        "Bon après-midi",
		Evening:          "Bonsoir",
		BadgeUnknown:     "Badge non reconnu",
		BadgeDeactivated: "Badge désactivé",
	}
)

// PhrasesFor returns the phrases of a language code ("en" or "fr")
func PhrasesFor(language string) (Phrases, error) {
	switch language {
	case "en":
		return EnglishPhrases, nil
	case "fr":
		return FrenchPhrases, nil
	default:
		return Phrases{}, fmt.Errorf("unsupported terminal language %q", language)
	}
}

// Greeting picks a salutation for the local hour of t
func (p Phrases) Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return p.Morning
	case h >= 12 && h < 18:
		return p.Afternoon
	default:
		return p.Evening
	}
}
