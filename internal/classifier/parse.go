package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/antonholmquist/jason"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/findrapp/findr/internal/errors"
)

const descriptionPrefixLen = 100

var errEmptyReply = errors.NewStd("empty model reply")

var (
	namePattern            = regexp.MustCompile(`(?i)(?:name|creature|animal):\s*([^\n,]+)`)
	confidencePattern      = regexp.MustCompile(`(?i)(?:confidence|confidence level):\s*(\d+)`)
	typePattern            = regexp.MustCompile(`(?i)(?:type|creature type):\s*([^\n,]+)`)
	characteristicsPattern = regexp.MustCompile(`(?i)(?:characteristics|key characteristics):\s*([^\n,]+)`)
	rarityPattern          = regexp.MustCompile(`(?i)rarity:\s*([^\n,]+)`)
)

// Parse turns a model reply into a Result. The JSON tier is tried first and
// the labelled-line tier is the fallback. Only an empty reply is an error.
func Parse(reply string) (Result, error) {
	if strings.TrimSpace(reply) == "" {
		return Result{}, errEmptyReply
	}
	if r, ok := parseJSON(reply); ok {
		return r, nil
	}
	return parsePattern(reply), nil
}

// parseJSON decodes the span between the first '{' and the last '}'.
func parseJSON(reply string) (Result, bool) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return Result{}, false
	}

	obj, err := jason.NewObjectFromBytes([]byte(reply[start : end+1]))
	if err != nil {
		return Result{}, false
	}

	detected, _ := obj.GetBoolean("isAnimal")
	creatureType := titleCase(stringOr(obj, "creatureType", DefaultCreatureType))
	characteristics := stringOr(obj, "keyCharacteristics", DefaultCharacteristics)
	rarity := stringOr(obj, "rarity", DefaultRarity)

	return Result{
		Detected:           detected,
		Name:               stringOr(obj, "name", DefaultName),
		Confidence:         confidence(obj),
		Description:        optional(stringOr(obj, "description", "")),
		Species:            optional(stringOr(obj, "species", "")),
		CreatureType:       &creatureType,
		KeyCharacteristics: &characteristics,
		Rarity:             &rarity,
		Tier:               TierJSON,
	}, true
}

func stringOr(obj *jason.Object, key, fallback string) string {
	s, err := obj.GetString(key)
	if err != nil {
		return fallback
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

// confidence accepts a number or a numeric string, clamped to [0,100].
func confidence(obj *jason.Object) float64 {
	var v float64
	if n, err := obj.GetFloat64("confidence"); err == nil {
		v = n
	} else if s, err := obj.GetString("confidence"); err == nil {
		if f, perr := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64); perr == nil {
			v = f
		}
	}
	return clamp(v)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func parsePattern(reply string) Result {
	lower := strings.ToLower(reply)
	detected := !strings.Contains(lower, "no creature detected") && !strings.Contains(lower, "no animal detected")

	score := float64(defaultPatternScore)
	if m := confidencePattern.FindStringSubmatch(reply); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			score = clamp(float64(n))
		}
	}

	creatureType := titleCase(firstMatch(typePattern, reply, DefaultCreatureType))
	characteristics := firstMatch(characteristicsPattern, reply, DefaultCharacteristics)
	rarity := firstMatch(rarityPattern, reply, DefaultRarity)
	description := prefix(reply, descriptionPrefixLen)

	return Result{
		Detected:           detected,
		Name:               firstMatch(namePattern, reply, DefaultName),
		Confidence:         score,
		Description:        &description,
		CreatureType:       &creatureType,
		KeyCharacteristics: &characteristics,
		Rarity:             &rarity,
		Tier:               TierPattern,
	}
}

func firstMatch(re *regexp.Regexp, s, fallback string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return fallback
	}
	if v := strings.TrimSpace(m[1]); v != "" {
		return v
	}
	return fallback
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// titleCase normalizes model labels such as "bird" to "Bird" so type based
// counters match. A new Caser is used per call since Casers keep state.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
