package utils

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/badoux/checkmail"
)

// ContactVerification is the result of vetting a discovered contact
// address before any outreach is queued to it.
type ContactVerification struct {
	Email        string `json:"email"`
	Status       string `json:"status"` // valid, invalid, disposable, unknown
	Details      string `json:"details"`
	IsBounceRisk bool   `json:"is_bounce_risk"`
}

var (
	disposableDomains = map[string]bool{
		"mailinator.com":    true,
		"guerrillamail.com": true,
		"10minutemail.com":  true,
		"tempmail.com":      true,
		"temp-mail.org":     true,
		"throwawaymail.com": true,
		"yopmail.com":       true,
		"getnada.com":       true,
		"trashmail.com":     true,
		"sharklasers.com":   true,
		"maildrop.cc":       true,
		"dispostable.com":   true,
	}

	// Common email typos
	commonTypos = map[string]string{
		"gmai.com":   "gmail.com",
		"gmal.com":   "gmail.com",
		"gmail.co":   "gmail.com",
		"yaho.com":   "yahoo.com",
		"hotmai.com": "hotmail.com",
		"outlok.com": "outlook.com",
	}

	// Domain to MX cache
	mxCache = struct {
		sync.RWMutex
		m map[string][]*net.MX
	}{m: make(map[string][]*net.MX)}
)

// VerifyContactEmail vets a discovered address: syntax, typo domains,
// disposable providers and MX reachability. No SMTP handshake is done;
// bounce handling catches what slips through.
func VerifyContactEmail(email string) (*ContactVerification, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	result := &ContactVerification{
		Email:        email,
		Status:       "unknown",
		IsBounceRisk: true,
	}

	if err := checkmail.ValidateFormat(email); err != nil {
		result.Status = "invalid"
		result.Details = "Invalid email format: " + err.Error()
		return result, nil
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		result.Status = "invalid"
		result.Details = "Invalid email format"
		return result, nil
	}
	localPart, domain := parts[0], parts[1]

	if suggestedDomain, ok := commonTypos[domain]; ok {
		result.Status = "invalid"
		result.Details = fmt.Sprintf("Possible typo, did you mean %s@%s?", localPart, suggestedDomain)
		return result, nil
	}

	if IsDisposableDomain(domain) {
		result.Status = "disposable"
		result.Details = "Disposable email domain"
		return result, nil
	}

	mxRecords, err := getMXRecords(domain)
	if err != nil || len(mxRecords) == 0 {
		result.Status = "invalid"
		result.Details = "Domain has no MX records"
		return result, nil
	}

	result.Status = "valid"
	result.Details = "Address accepted"
	result.IsBounceRisk = false
	return result, nil
}

// ExtractDomain extracts domain from email address
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

func IsDisposableDomain(domain string) bool {
	return disposableDomains[strings.ToLower(domain)]
}

func getMXRecords(domain string) ([]*net.MX, error) {
	mxCache.RLock()
	if records, ok := mxCache.m[domain]; ok {
		mxCache.RUnlock()
		return records, nil
	}
	mxCache.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resolver net.Resolver
	mxRecords, err := resolver.LookupMX(ctx, domain)
	if err != nil {
		return nil, err
	}

	mxCache.Lock()
	mxCache.m[domain] = mxRecords
	mxCache.Unlock()

	return mxRecords, nil
}
