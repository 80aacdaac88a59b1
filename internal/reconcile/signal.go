package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// Signal is an inbound payment notification as the channel sent it. Any
// field may be missing or hold an unresolved template placeholder.
type Signal struct {
	Ref        string
	Amount     string
	Channel    string
	RawText    string
	ReceivedAt string
	Secret     string
}

// Normalized is a Signal after coercion and raw-text extraction.
type Normalized struct {
	Ref             string
	Amount          int64
	AmountDefaulted bool
	Channel         string
	RawText         string
	ReceivedAt      string
	// Extracted lists the fields recovered from the raw text.
	Extracted []string
}

const (
	maxSentinel     = 10000
	defaultSentinel = 1000
)

var (
	placeholderPattern = regexp.MustCompile(`%[^%\s]*%|\{\{.*?\}\}|\$\{.*?\}|<[^>]*>`)
	fractionSuffix     = regexp.MustCompile(`[.,]\d{1,2}$`)
	nonDigit           = regexp.MustCompile(`\D`)
	rupiahAmount       = regexp.MustCompile(`(?i)\bRp\.?\s*(\d[\d.,]*)`)
	digitRun           = regexp.MustCompile(`\d{3,}`)
	nonAlnum           = regexp.MustCompile(`[^a-z0-9]`)
)

// RefPattern matches a gift reference token inside free text.
var RefPattern = regexp.MustCompile(`(?i)\bDON[A-Z0-9]{3,}\b`)

// ParseAmount coerces a formatted amount ("Rp 20.000", "50000", "20000.00")
// into minor units. A trailing one- or two-digit fraction is dropped before
// the remaining non-digits are stripped.
func ParseAmount(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, false
	}
	s = fractionSuffix.ReplaceAllString(s, "")
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" || len(digits) > 15 {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CleanRef returns the reference, or "" when it is blank or still holds a
// template placeholder such as %merchant_ref%.
func CleanRef(raw string) string {
	ref := strings.TrimSpace(raw)
	switch strings.ToLower(ref) {
	case "", "null", "undefined", "nil", "-":
		return ""
	}
	if placeholderPattern.MatchString(ref) {
		return ""
	}
	return ref
}

// NormalizeChannel lowercases the channel and drops separators, so "GoPay"
// and "go_pay" both become "gopay".
func NormalizeChannel(raw string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "")
}

func extractRef(text string) string {
	if m := RefPattern.FindString(text); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

func extractAmount(text string) (int64, bool) {
	if m := rupiahAmount.FindStringSubmatch(text); m != nil {
		if n, ok := ParseAmount(m[1]); ok {
			return n, true
		}
	}
	// Digits inside a reference token are not an amount.
	stripped := RefPattern.ReplaceAllString(text, " ")
	for _, run := range digitRun.FindAllString(stripped, -1) {
		if n, ok := ParseAmount(run); ok {
			return n, true
		}
	}
	return 0, false
}

// SentinelAmount clamps the configured default amount into its bounds.
func SentinelAmount(configured int64) int64 {
	switch {
	case configured <= 0:
		return defaultSentinel
	case configured > maxSentinel:
		return maxSentinel
	}
	return configured
}

// Normalize coerces sig. It never fails; channel support is checked by the
// reconciler.
func Normalize(sig Signal, servedChannel string, sentinel int64) Normalized {
	n := Normalized{
		Ref:        CleanRef(sig.Ref),
		Channel:    NormalizeChannel(sig.Channel),
		RawText:    strings.TrimSpace(sig.RawText),
		ReceivedAt: strings.TrimSpace(sig.ReceivedAt),
	}
	if amount, ok := ParseAmount(sig.Amount); ok {
		n.Amount = amount
	}

	if n.RawText != "" {
		if n.Ref == "" {
			if ref := extractRef(n.RawText); ref != "" {
				n.Ref = ref
				n.Extracted = append(n.Extracted, "ref")
			}
		}
		if n.Amount == 0 {
			if amount, ok := extractAmount(n.RawText); ok {
				n.Amount = amount
				n.Extracted = append(n.Extracted, "amount")
			}
		}
	}
	if n.Channel == "" {
		n.Channel = NormalizeChannel(servedChannel)
	}
	if n.Amount <= 0 {
		n.Amount = SentinelAmount(sentinel)
		n.AmountDefaulted = true
	}
	return n
}

// Fingerprint identifies a redelivery of the same reference-less signal. It
// is empty when the signal carries nothing that distinguishes it.
func (n Normalized) Fingerprint() string {
	if n.RawText == "" && n.ReceivedAt == "" {
		return ""
	}
	h := sha256.New()
	for _, part := range []string{n.Channel, strconv.FormatInt(n.Amount, 10), n.RawText, n.ReceivedAt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
