package decoder

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tidwall/jsonc"

	"github.com/Minhal128/CodeX/common/metrics"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/template"
)

// Tier names the strategy that produced a decode result.
type Tier string

const (
	TierTemplate Tier = "template"
	TierStrict   Tier = "strict"
	TierBalanced Tier = "balanced"
	TierExtract  Tier = "extract"
	TierFallback Tier = "fallback"
)

const (
	DefaultExcerptLimit = 300

	// treeMarker is the quoted key that signals a payload carries a tree.
	treeMarker = `"tree"`

	// generatedTreeNotice is the body used when a template payload has no
	// locatable body field.
	generatedTreeNotice = "Project files generated."

	// maxBalancedCandidates bounds the brace-balancing scan on large inputs.
	maxBalancedCandidates = 8
)

// bodyFieldPattern finds a "body" string field and captures its raw contents
// up to the closing quote or, for truncated payloads, to the end of input.
var bodyFieldPattern = regexp.MustCompile(`(?s)"body"\s*:\s*"((?:[^"\\]|\\.)*)`)

// Decoder turns raw channel payloads into Content. It never fails: every
// input yields one of the four Content variants.
type Decoder struct {
	keywords     []string
	excerptLimit int
}

type Option func(*Decoder)

// WithTemplateKeywords replaces the keywords used by the template
// short-circuit.
func WithTemplateKeywords(keywords ...string) Option {
	return func(d *Decoder) {
		d.keywords = lowerAll(keywords)
	}
}

// WithExcerptLimit sets the maximum byte length of Unparseable excerpts.
func WithExcerptLimit(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.excerptLimit = n
		}
	}
}

func New(opts ...Option) *Decoder {
	d := &Decoder{
		keywords:     lowerAll(template.Keywords()),
		excerptLimit: DefaultExcerptLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = New()

// Decode decodes raw with the default decoder.
func Decode(raw string) Content {
	return defaultDecoder.Decode(raw)
}

func (d *Decoder) Decode(raw string) Content {
	content, _ := d.DecodeWithTier(raw)
	return content
}

// DecodeWithTier is Decode that also reports which tier produced the result.
func (d *Decoder) DecodeWithTier(raw string) (content Content, tier Tier) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered while decoding payload", "panic", r)
			content, tier = Unparseable{Excerpt: prefix(raw, d.excerptLimit)}, TierFallback
		}
		metrics.DecoderDecodes.WithLabelValues(string(tier)).Inc()
	}()

	if d.isTemplatePayload(raw) {
		// Scaffolded projects keep the keywords in their files, so a well-formed
		// inline tree wins over the template.
		if c, ok := parseStrict([]byte(raw)); ok {
			if _, inline := c.(TextWithTree); inline {
				return c, TierStrict
			}
		}
		body, ok := extractBody(raw)
		if !ok {
			body = generatedTreeNotice
		}
		return TreePresenceFlag{Body: body}, TierTemplate
	}

	if c, ok := parseStrict([]byte(raw)); ok {
		return c, TierStrict
	}

	if c, ok := parseBalanced(raw); ok {
		return c, TierBalanced
	}

	if body, ok := extractBody(raw); ok {
		slog.Debug("payload body recovered by field extraction", "length", len(raw))
		return Text{Body: body}, TierExtract
	}

	return Unparseable{Excerpt: prefix(raw, d.excerptLimit)}, TierFallback
}

func (d *Decoder) isTemplatePayload(raw string) bool {
	if !strings.Contains(raw, treeMarker) {
		return false
	}
	lowered := strings.ToLower(raw)
	for _, kw := range d.keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

type wirePayload struct {
	Body *string         `json:"body"`
	Tree json.RawMessage `json:"tree"`
}

// parseStrict decodes a complete payload document. Comments and trailing
// commas are stripped first; anything else malformed fails the tier.
func parseStrict(raw []byte) (Content, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var p wirePayload
	if err := json.Unmarshal(jsonc.ToJSON(trimmed), &p); err != nil {
		return nil, false
	}
	if p.Body == nil {
		return nil, false
	}
	return classify(*p.Body, p.Tree), true
}

func classify(body string, rawTree json.RawMessage) Content {
	trimmed := bytes.TrimSpace(rawTree)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return Text{Body: body}
	}
	if trimmed[0] != '{' {
		return TreePresenceFlag{Body: body}
	}

	tree, err := filetree.Parse(trimmed)
	if err != nil {
		slog.Debug("payload tree present but not a valid file tree", "error", err)
		return TreePresenceFlag{Body: body}
	}
	return TextWithTree{Body: body, Tree: tree}
}

// parseBalanced looks for a complete JSON object embedded in surrounding
// text, such as a payload wrapped in prose or a markdown fence, and parses it
// with the strict rules.
func parseBalanced(raw string) (Content, bool) {
	whole := strings.TrimSpace(raw)
	start := 0
	for attempts := 0; attempts < maxBalancedCandidates; attempts++ {
		open := strings.IndexByte(raw[start:], '{')
		if open < 0 {
			return nil, false
		}
		open += start

		end, ok := matchingBrace(raw, open)
		if !ok {
			return nil, false
		}
		candidate := raw[open : end+1]
		if candidate != whole {
			if c, ok := parseStrict([]byte(candidate)); ok {
				return c, true
			}
		}
		start = open + 1
	}
	return nil, false
}

// matchingBrace returns the index of the brace closing the object that opens
// at raw[open], skipping braces inside string literals.
func matchingBrace(raw string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func extractBody(raw string) (string, bool) {
	m := bodyFieldPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return unescape(m[1]), true
}

// unescape resolves JSON string escapes. Unknown escapes keep the escaped
// character and a dangling backslash at the end of truncated input is
// dropped.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			r, width := decodeUnicodeEscape(s[i+1:])
			if width == 0 {
				b.WriteString(`\u`)
				continue
			}
			b.WriteRune(r)
			i += width
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// decodeUnicodeEscape reads the hex digits following `\u`, combining a
// surrogate pair when one follows. It returns the rune and the number of
// bytes consumed after the `u`.
func decodeUnicodeEscape(s string) (rune, int) {
	if len(s) < 4 {
		return 0, 0
	}
	n, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0
	}
	r := rune(n)
	if utf16.IsSurrogate(r) && len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if low, err := strconv.ParseUint(s[6:10], 16, 32); err == nil {
			if combined := utf16.DecodeRune(r, rune(low)); combined != utf8.RuneError {
				return combined, 10
			}
		}
	}
	if utf16.IsSurrogate(r) {
		return utf8.RuneError, 4
	}
	return r, 4
}

// prefix returns the longest prefix of s that is at most limit bytes and does
// not split a UTF-8 sequence.
func prefix(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
