package imapx

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const imapsPort = 993

// IMAP endpoints for common providers, keyed by handle domain
var knownServers = map[string]string{
	"gmail.com":      "imap.gmail.com",
	"googlemail.com": "imap.gmail.com",
	"outlook.com":    "outlook.office365.com",
	"hotmail.com":    "outlook.office365.com",
	"live.com":       "outlook.office365.com",
	"yahoo.com":      "imap.mail.yahoo.com",
	"yandex.ru":      "imap.yandex.ru",
	"yandex.com":     "imap.yandex.com",
	"mail.ru":        "imap.mail.ru",
	"icloud.com":     "imap.mail.me.com",
	"me.com":         "imap.mail.me.com",
	"aol.com":        "imap.aol.com",
	"zoho.com":       "imap.zoho.com",
	"fastmail.com":   "imap.fastmail.com",
	"gmx.com":        "imap.gmx.com",
	"gmx.de":         "imap.gmx.net",
	"web.de":         "imap.web.de",
}

// ResolveServer guesses the IMAP endpoint for a mailbox handle: known
// providers first, then the usual imap./mail. host patterns, then a
// derivation from the domain's MX records. Used when credentials come
// in without an explicit host.
func ResolveServer(handle string) (string, int, error) {
	parts := strings.Split(handle, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", 0, fmt.Errorf("invalid mailbox handle %q", handle)
	}

	domain := strings.ToLower(parts[1])

	if host, ok := knownServers[domain]; ok {
		return host, imapsPort, nil
	}

	for _, host := range []string{"imap." + domain, "mail." + domain, domain} {
		if probe(host, imapsPort) {
			return host, imapsPort, nil
		}
	}

	if host, err := resolveViaMX(domain); err == nil {
		return host, imapsPort, nil
	}

	// Last resort: the most common pattern, unverified
	return "imap." + domain, imapsPort, nil
}

// probe checks whether a host accepts TCP connections on a port
func probe(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// resolveViaMX derives an IMAP host from the domain's primary MX
// record, e.g. mx.example.com -> imap.example.com
func resolveViaMX(domain string) (string, error) {
	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return "", fmt.Errorf("no MX records for %s", domain)
	}

	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("cannot derive IMAP host from MX %s", mxHost)
	}

	baseDomain := parts[1]
	for _, host := range []string{"imap." + baseDomain, "mail." + baseDomain} {
		if probe(host, imapsPort) {
			return host, nil
		}
	}

	return "", fmt.Errorf("no reachable IMAP host derived from MX %s", mxHost)
}
