// Package spam scores free text for common contact-form spam signals.
package spam

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Signal categories. Each contributes at most one reason to a Verdict.
const (
	CategoryLinks       = "links"
	CategoryPromotional = "promotional"
	CategoryFormatting  = "formatting"
	CategoryPhone       = "phone"
	CategoryJargon      = "jargon"
	CategoryLength      = "length"
	CategoryRepetition  = "repetition"
)

// ErrInvalidConfig is returned for a non-positive threshold or negative weight.
var ErrInvalidConfig = errors.New("spam: invalid analyzer config")

// Weights are the per-category score increments.
type Weights struct {
	Links       int
	Promotional int
	Formatting  int
	Phone       int
	Jargon      int
	Length      int
	Repetition  int
}

// Config tunes the analyzer. Zero values are not defaults; start from
// DefaultConfig.
type Config struct {
	Threshold      int
	Weights        Weights
	MinLength      int
	MaxLength      int
	PromotionalCap int
	JargonCap      int
}

// DefaultConfig returns the production weights and a threshold of 8.
func DefaultConfig() Config {
	return Config{
		Threshold: 8,
		Weights: Weights{
			Links:       3,
			Promotional: 2,
			Formatting:  2,
			Phone:       2,
			Jargon:      1,
			Length:      2,
			Repetition:  2,
		},
		MinLength:      20,
		MaxLength:      2000,
		PromotionalCap: 3,
		JargonCap:      4,
	}
}

// Validate rejects configs that could never flag or that subtract score.
func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive", ErrInvalidConfig)
	}
	w := c.Weights
	for _, v := range []int{w.Links, w.Promotional, w.Formatting, w.Phone, w.Jargon, w.Length, w.Repetition} {
		if v < 0 {
			return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
		}
	}
	if c.MinLength < 0 || c.MaxLength < c.MinLength {
		return fmt.Errorf("%w: length bounds", ErrInvalidConfig)
	}
	if c.PromotionalCap < 0 || c.JargonCap < 0 {
		return fmt.Errorf("%w: caps must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Apply overwrites the fields named in overrides and validates the result.
// Keys are the category names plus threshold, min_length, max_length,
// promotional_cap and jargon_cap. A cap of zero disables the cap.
func (c *Config) Apply(overrides map[string]int) error {
	for key, v := range overrides {
		field := c.field(key)
		if field == nil {
			return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
		}
		*field = v
	}
	return c.Validate()
}

func (c *Config) field(key string) *int {
	switch key {
	case CategoryLinks:
		return &c.Weights.Links
	case CategoryPromotional:
		return &c.Weights.Promotional
	case CategoryFormatting:
		return &c.Weights.Formatting
	case CategoryPhone:
		return &c.Weights.Phone
	case CategoryJargon:
		return &c.Weights.Jargon
	case CategoryLength:
		return &c.Weights.Length
	case CategoryRepetition:
		return &c.Weights.Repetition
	case "threshold":
		return &c.Threshold
	case "min_length":
		return &c.MinLength
	case "max_length":
		return &c.MaxLength
	case "promotional_cap":
		return &c.PromotionalCap
	case "jargon_cap":
		return &c.JargonCap
	}
	return nil
}

// Verdict is the deterministic outcome of Analyze.
type Verdict struct {
	IsSpam     bool
	Confidence int
	Score      int
	Reasons    []string
}

var (
	emailPattern = regexp.MustCompile(`[^\s@]+@[^\s@]+\.[^\s@]+`)
	linkPattern  = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+|\b[a-z0-9][a-z0-9-]*\.(?:com|net|org|biz|info|io|co|ru|cn|xyz|top|click|online|site|shop|link)\b`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s().-]{8,}\d`)
	punctPattern = regexp.MustCompile(`[!?]{3,}`)
	wordPattern  = regexp.MustCompile(`[\p{L}]+`)
)

var promotionalPhrases = []string{
	"free money",
	"click here",
	"act now",
	"buy now",
	"limited time",
	"make money",
	"earn money",
	"work from home",
	"100% free",
	"risk free",
	"no obligation",
	"guaranteed",
	"congratulations",
	"you have been selected",
	"winner",
	"cash bonus",
	"lowest price",
	"special promotion",
	"double your",
	"seo services",
	"backlinks",
	"first page of google",
	"casino",
	"crypto",
	"viagra",
}

var jargonKeywords = compileKeywords([]string{
	"synergy",
	"leverage",
	"paradigm",
	"disrupt",
	"scalable",
	"blockchain",
	"roi",
	"growth hacking",
	"thought leader",
	"best-in-class",
	"win-win",
	"low-hanging fruit",
	"circle back",
	"move the needle",
	"game changer",
})

type keyword struct {
	word string
	re   *regexp.Regexp
}

func compileKeywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		out = append(out, keyword{word: w, re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)})
	}
	return out
}

// Analyzer applies Config to text. It holds no mutable state.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer validates cfg and returns an analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{cfg: cfg}, nil
}

// Threshold returns the configured spam threshold.
func (a *Analyzer) Threshold() int {
	return a.cfg.Threshold
}

// Analyze scores a free-text body such as the inquiry message.
func (a *Analyzer) Analyze(text string) Verdict {
	return a.analyze(text, true)
}

// AnalyzeShort scores a short field such as a company name. The length
// category is skipped.
func (a *Analyzer) AnalyzeShort(text string) Verdict {
	return a.analyze(text, false)
}

func (a *Analyzer) analyze(text string, checkLength bool) Verdict {
	var score int
	var reasons []string
	add := func(points int, category, detail string) {
		if points <= 0 {
			return
		}
		score += points
		reasons = append(reasons, category+":"+detail)
	}

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	withoutEmails := emailPattern.ReplaceAllString(trimmed, " ")
	if linkPattern.MatchString(withoutEmails) {
		add(a.cfg.Weights.Links, CategoryLinks, "url")
	}

	if n := countPhrases(lower, promotionalPhrases, a.cfg.PromotionalCap); n > 0 {
		add(n*a.cfg.Weights.Promotional, CategoryPromotional, fmt.Sprintf("%d_phrases", n))
	}

	var formatting int
	var formattingDetail []string
	if punctPattern.MatchString(trimmed) {
		formatting += a.cfg.Weights.Formatting
		formattingDetail = append(formattingDetail, "punctuation")
	}
	if isShouting(trimmed) {
		formatting += a.cfg.Weights.Formatting
		formattingDetail = append(formattingDetail, "caps")
	}
	add(formatting, CategoryFormatting, strings.Join(formattingDetail, "+"))

	if hasPhoneNumber(withoutEmails) {
		add(a.cfg.Weights.Phone, CategoryPhone, "number")
	}

	if n := countKeywords(trimmed, jargonKeywords, a.cfg.JargonCap); n >= 2 {
		add(n*a.cfg.Weights.Jargon, CategoryJargon, fmt.Sprintf("%d_keywords", n))
	}

	if checkLength {
		length := utf8.RuneCountInString(trimmed)
		switch {
		case length < a.cfg.MinLength:
			add(a.cfg.Weights.Length, CategoryLength, "too_short")
		case length > a.cfg.MaxLength:
			add(a.cfg.Weights.Length, CategoryLength, "too_long")
		}
	}

	if hasRepeatedRun(trimmed, 5) {
		add(a.cfg.Weights.Repetition, CategoryRepetition, "repeated_characters")
	}

	confidence := score * 10
	if confidence > 100 {
		confidence = 100
	}
	return Verdict{
		IsSpam:     score >= a.cfg.Threshold,
		Confidence: confidence,
		Score:      score,
		Reasons:    reasons,
	}
}

func countPhrases(lower string, phrases []string, limit int) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			n++
			if limit > 0 && n >= limit {
				break
			}
		}
	}
	return n
}

func countKeywords(text string, keywords []keyword, limit int) int {
	n := 0
	for _, k := range keywords {
		if k.re.MatchString(text) {
			n++
			if limit > 0 && n >= limit {
				break
			}
		}
	}
	return n
}

// isShouting reports a caps ratio above one half over at least ten letters,
// or three consecutive all-caps words.
func isShouting(text string) bool {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 10 && float64(upper)/float64(letters) > 0.5 {
		return true
	}

	run := 0
	for _, w := range wordPattern.FindAllString(text, -1) {
		if utf8.RuneCountInString(w) >= 2 && strings.ToUpper(w) == w {
			run++
			if run >= 3 {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}

func hasPhoneNumber(text string) bool {
	for _, candidate := range phonePattern.FindAllString(text, -1) {
		digits := 0
		for _, r := range candidate {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 10 && digits <= 15 {
			return true
		}
	}
	return false
}

func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev && !unicode.IsSpace(r) {
			run++
			if run >= n {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
