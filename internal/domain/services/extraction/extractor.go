// Package extraction pulls adversary-identifying facts out of free text using
// fixed lexical rules. Extraction is pure and never fails.
package extraction

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"honeypot-lab/internal/domain/models"
)

// LinkPolicy decides which http(s) URLs count as phishing links
type LinkPolicy string

const (
	// LinkPolicyStrict accepts only links containing a suspicion marker
	LinkPolicyStrict LinkPolicy = "strict"
	// LinkPolicyPermissive accepts every http(s) link
	LinkPolicyPermissive LinkPolicy = "permissive"
)

// Phone numbers are exactly ten digits and start with 6-9
const phoneDigits = 10

// DefaultUPIHandles are the payment-provider suffixes recognised as UPI handles
var DefaultUPIHandles = []string{
	"okicici", "okhdfcbank", "oksbi", "okaxis", "paytm", "phonepe", "gpay", "axl",
	"ybl", "ibl", "sbi", "hdfc", "icici", "axis", "kotak", "yesbank", "upi", "apl",
}

// SuspiciousKeywords are the pressure and payment terms scammers lean on
var SuspiciousKeywords = []string{
	"verify", "account", "locked", "password", "click", "link", "http",
	"urgent", "immediate", "upi", "payment", "send money", "bank",
}

// LinkMarkers qualify a link as suspicious under the strict policy
var LinkMarkers = []string{
	"verify", "secure", "login", "account", "bank", "pay", "update",
	"click", "wallet", "kyc", "otp", "reward", "refund",
}

// Options configures an Extractor
type Options struct {
	MinAccountDigits int
	MaxAccountDigits int
	LinkPolicy       LinkPolicy
	// UPIHandles replaces DefaultUPIHandles when non-empty
	UPIHandles []string
}

// DefaultOptions returns the production rule set
func DefaultOptions() Options {
	return Options{
		MinAccountDigits: 11,
		MaxAccountDigits: 18,
		LinkPolicy:       LinkPolicyStrict,
	}
}

// Extractor applies the lexical evidence rules. It holds only compiled patterns
// and is safe for concurrent use.
type Extractor struct {
	opts Options

	digitRun *regexp.Regexp
	ifsc     *regexp.Regexp
	upi      *regexp.Regexp
	email    *regexp.Regexp
	link     *regexp.Regexp
	amount   *regexp.Regexp
	keywords []*regexp.Regexp

	// +91 glued to the number would otherwise read as a 12 digit account
	intlPhone *regexp.Regexp
}

// New compiles an Extractor. Out-of-range options fall back to the defaults.
func New(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.MinAccountDigits < 9 || opts.MinAccountDigits > 18 {
		opts.MinAccountDigits = def.MinAccountDigits
	}
	if opts.MaxAccountDigits < opts.MinAccountDigits || opts.MaxAccountDigits > 18 {
		opts.MaxAccountDigits = def.MaxAccountDigits
	}
	if opts.LinkPolicy != LinkPolicyPermissive {
		opts.LinkPolicy = LinkPolicyStrict
	}
	if len(opts.UPIHandles) == 0 {
		opts.UPIHandles = DefaultUPIHandles
	}

	handles := make([]string, 0, len(opts.UPIHandles))
	for _, h := range opts.UPIHandles {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "@")))
		if h != "" {
			handles = append(handles, regexp.QuoteMeta(h))
		}
	}
	// longer handles first so okhdfcbank wins over hdfc
	sort.Slice(handles, func(i, j int) bool { return len(handles[i]) > len(handles[j]) })

	e := &Extractor{
		opts:     opts,
		digitRun: regexp.MustCompile(`\b\d+\b`),
		ifsc:     regexp.MustCompile(`(?i)\b[A-Z]{4}0[A-Z0-9]{6}\b`),
		upi:      regexp.MustCompile(`(?i)\b([\w.\-]+@(?:` + strings.Join(handles, "|") + `))\b(\.[a-z])?`),
		email:    regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
		link:     regexp.MustCompile(`(?i)https?://[^\s<>"'}\]]+`),
		amount:   regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr)\s?(\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d{1,2})?`),

		intlPhone: regexp.MustCompile(`\+91[\s-]?([6-9]\d{9})\b`),
	}
	for _, kw := range SuspiciousKeywords {
		e.keywords = append(e.keywords, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return e
}

// Options returns the effective rule options
func (e *Extractor) Options() Options {
	return e.opts
}

// Extract returns every candidate fact found in text, deduplicated by normalized value
func (e *Extractor) Extract(text string) models.EvidenceSet {
	out := models.NewEvidenceSet()
	if text == "" {
		return out
	}

	e.extractDigits(text, out)

	for _, m := range e.ifsc.FindAllString(text, -1) {
		out.Add(models.CategoryIFSCCode, strings.ToUpper(m))
	}

	for _, m := range e.upi.FindAllStringSubmatch(text, -1) {
		// a trailing ".tld" means the handle was really an email domain
		if m[2] != "" {
			continue
		}
		out.Add(models.CategoryUPIID, strings.ToLower(m[1]))
	}

	for _, m := range e.email.FindAllString(text, -1) {
		out.Add(models.CategoryEmail, strings.ToLower(m))
	}

	for _, m := range e.link.FindAllString(text, -1) {
		link := strings.TrimRight(m, ".,;:!?)")
		if e.suspiciousLink(link) {
			out.Add(models.CategoryPhishingLink, NormalizeLink(link))
		}
	}

	for _, m := range e.amount.FindAllStringSubmatch(text, -1) {
		out.Add(models.CategoryAmount, "INR "+strings.ReplaceAll(m[1], ",", ""))
	}

	for i, re := range e.keywords {
		if re.MatchString(text) {
			out.Add(models.CategoryKeyword, SuspiciousKeywords[i])
		}
	}

	return out
}

// extractDigits classifies delimited digit runs as phones or accounts.
// A phone-shaped run is never an account, whatever the account window.
func (e *Extractor) extractDigits(text string, out models.EvidenceSet) {
	if matches := e.intlPhone.FindAllStringSubmatchIndex(text, -1); len(matches) > 0 {
		masked := []byte(text)
		for _, m := range matches {
			out.Add(models.CategoryPhoneNumber, text[m[2]:m[3]])
			for i := m[0]; i < m[1]; i++ {
				masked[i] = ' '
			}
		}
		text = string(masked)
	}

	for _, run := range e.digitRun.FindAllString(text, -1) {
		if IsPhoneNumber(run) {
			out.Add(models.CategoryPhoneNumber, run)
			continue
		}
		if n := len(run); n >= e.opts.MinAccountDigits && n <= e.opts.MaxAccountDigits {
			out.Add(models.CategoryBankAccount, run)
		}
	}
}

func (e *Extractor) suspiciousLink(link string) bool {
	if e.opts.LinkPolicy == LinkPolicyPermissive {
		return true
	}
	lower := strings.ToLower(link)
	for _, marker := range LinkMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsPhoneNumber reports whether s is exactly a ten digit mobile number starting 6-9
func IsPhoneNumber(s string) bool {
	if len(s) != phoneDigits || s[0] < '6' || s[0] > '9' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeLink lowercases the scheme and host, which are case-insensitive.
// Path and query keep their case.
func NormalizeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	sep := strings.Index(link, "://")
	if sep < 0 {
		return link
	}
	rest := link[sep+3:]
	at := strings.Index(rest, u.Host)
	if at < 0 {
		return link
	}
	return strings.ToLower(link[:sep+3]) + rest[:at] + strings.ToLower(u.Host) + rest[at+len(u.Host):]
}
