package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// card processors prefix the merchant as "SQ *BLUE BOTTLE", "TST* JOES", "PAYPAL *ACME"
	processorPrefix = regexp.MustCompile(`^(?:sq|tst|sp|pp|paypal|py|ipn|eb|pos|dd|ach)\s*\*\s*`)

	// "#4521", "store 12", "no. 7", "loc #3"; everything after a marker is location noise
	storeMarker = regexp.MustCompile(`(?:^|\s)(?:#\s*\d+|(?:store|str|no|unit|loc|location)\.?\s*#?\s*\d+\b)`)

	referenceWords = map[string]bool{
		"order": true, "ref": true, "reference": true, "txn": true, "trx": true,
		"conf": true, "confirmation": true, "inv": true, "invoice": true,
	}

	corporateSuffixes = map[string]bool{
		"inc": true, "llc": true, "ltd": true, "co": true, "corp": true, "corporation": true,
		"company": true, "limited": true, "plc": true, "gmbh": true, "com": true,
	}

	stateCodes = map[string]bool{
		"al": true, "ak": true, "az": true, "ar": true, "ca": true, "co": true, "ct": true, "de": true,
		"dc": true, "fl": true, "ga": true, "hi": true, "id": true, "il": true, "in": true, "ia": true,
		"ks": true, "ky": true, "la": true, "me": true, "md": true, "ma": true, "mi": true, "mn": true,
		"ms": true, "mo": true, "mt": true, "ne": true, "nv": true, "nh": true, "nj": true, "nm": true,
		"ny": true, "nc": true, "nd": true, "oh": true, "ok": true, "or": true, "pa": true, "ri": true,
		"sc": true, "sd": true, "tn": true, "tx": true, "ut": true, "vt": true, "va": true, "wa": true,
		"wv": true, "wi": true, "wy": true,
	}
)

const maxMerchantPasses = 10

// NormalizeMerchant reduces a raw merchant name to its canonical key by stripping
// processor prefixes, store and location codes, reference numbers, state codes,
// corporate suffixes, punctuation and diacritics. It is idempotent.
func NormalizeMerchant(raw string) string {
	key := raw
	for i := 0; i < maxMerchantPasses; i++ {
		next := merchantPass(key)
		if next == key {
			break
		}
		key = next
	}
	if key == "" {
		// nothing but noise; fall back to the bare characters
		return Alphanumeric(strings.ToLower(StripAccents(raw)))
	}
	return key
}

// BrandToken is the first token of a canonical merchant key.
func BrandToken(key string) string {
	if i := strings.IndexByte(key, ' '); i >= 0 {
		return key[:i]
	}
	return key
}

func merchantPass(s string) string {
	s = strings.ToLower(StripAccents(strings.TrimSpace(s)))
	s = processorPrefix.ReplaceAllString(s, "")

	// a leading marker is dropped on its own, a later one ends the name
	for {
		loc := storeMarker.FindStringIndex(s)
		if loc == nil {
			break
		}
		if strings.TrimSpace(s[:loc[0]]) == "" {
			s = strings.TrimSpace(s[loc[1]:])
			continue
		}
		s = s[:loc[0]]
		break
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\'' || r == '’':
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return ' '
		}
	}, s)

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for i, tok := range tokens {
		if i > 0 && isReferenceToken(tokens[i-1], tok) {
			continue
		}
		if referenceWords[tok] && len(tokens) > 1 {
			continue
		}
		kept = append(kept, tok)
	}
	tokens = kept

	for len(tokens) > 1 && (stateCodes[tokens[len(tokens)-1]] || corporateSuffixes[tokens[len(tokens)-1]]) {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}

// minCodeDigits is the shortest bare number read as a store or reference code. Shorter
// numbers ("forever 21", "route 66") stay part of the brand.
const minCodeDigits = 3

// isReferenceToken reports whether a non-leading token looks like an order, store or
// reference number rather than part of the brand. prev is the token before it.
func isReferenceToken(prev, tok string) bool {
	digits := 0
	for _, r := range tok {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	n := len([]rune(tok))
	if digits < n {
		return n >= 5
	}
	return digits >= minCodeDigits || referenceWords[prev]
}
