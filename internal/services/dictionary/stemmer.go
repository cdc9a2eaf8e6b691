package dictionary

import "strings"

// Stemmer reduces a normalized token to its lemma. One per land language;
// unknown languages get the identity stemmer.
type Stemmer func(string) string

// StemmerFor returns the stemmer registered for a language code.
func StemmerFor(language string) Stemmer {
	switch strings.ToLower(language) {
	case "en":
		return stemEnglish
	case "fr":
		return stemFrench
	default:
		return stemIdentity
	}
}

func stemIdentity(token string) string {
	return token
}

// stemEnglish is a light suffix stripper, not a full Porter stemmer. It
// only needs to map inflected forms onto the same lemma as the keyword
// normalization, which uses the identical function.
func stemEnglish(token string) string {
	switch {
	case strings.HasSuffix(token, "'s"):
		token = token[:len(token)-2]
	case strings.HasSuffix(token, "ies") && len(token) > 4:
		token = token[:len(token)-3] + "y"
	case strings.HasSuffix(token, "sses"):
		token = token[:len(token)-2]
	case strings.HasSuffix(token, "es") && len(token) > 4:
		token = token[:len(token)-2]
	case strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") && len(token) > 3:
		token = token[:len(token)-1]
	}

	switch {
	case strings.HasSuffix(token, "ing") && len(token) > 5:
		token = token[:len(token)-3]
	case strings.HasSuffix(token, "ed") && len(token) > 4:
		token = token[:len(token)-2]
	}
	return token
}

// stemFrench handles plural and feminine endings.
func stemFrench(token string) string {
	switch {
	case strings.HasSuffix(token, "eaux") && len(token) > 5:
		token = token[:len(token)-1]
	case strings.HasSuffix(token, "aux") && len(token) > 4:
		token = token[:len(token)-3] + "al"
	case strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") && len(token) > 3:
		token = token[:len(token)-1]
	case strings.HasSuffix(token, "x") && len(token) > 3:
		token = token[:len(token)-1]
	}

	if strings.HasSuffix(token, "e") && len(token) > 4 {
		token = token[:len(token)-1]
	}
	return token
}
