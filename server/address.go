package server

import (
	"fmt"
	"regexp"
	"strings"
)

// RFC 5321/5322 address validation patterns
const localPartRegex = `^(?i)(?:[a-z0-9!#$%&'*+/=?^_\{\|\}~-])+(?:\.(?:[a-z0-9!#$%&'*+/=?^_\{\|\}~-])+)*$`
const domainNameRegex = `^(?i)(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`

var (
	localPartRe  = regexp.MustCompile(localPartRegex)
	domainNameRe = regexp.MustCompile(domainNameRegex)
)

// Address is a parsed mail address from a MAIL/RCPT path.
type Address struct {
	fullAddress string
	localPart   string
	domain      string
}

// NewAddress parses a bare user@domain address.
func NewAddress(address string) (*Address, error) {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	localPart := address[:at]
	domain := strings.ToLower(address[at+1:])

	if !localPartRe.MatchString(localPart) {
		return nil, fmt.Errorf("invalid local part in address %q", address)
	}
	if !domainNameRe.MatchString(domain) && domain != "localhost" {
		return nil, fmt.Errorf("invalid domain in address %q", address)
	}

	return &Address{
		fullAddress: localPart + "@" + domain,
		localPart:   localPart,
		domain:      domain,
	}, nil
}

// ParsePath parses an SMTP forward/reverse path argument: an address,
// optionally in angle brackets, optionally with a source route prefix
// ("@relay:user@domain"). A nil address with nil error is the null
// reverse-path "<>", legal for MAIL FROM only.
//
// enforceBrackets rejects paths without the surrounding angle brackets.
func ParsePath(path string, enforceBrackets bool) (*Address, error) {
	path = strings.TrimSpace(path)
	if path == "<>" {
		return nil, nil
	}

	bracketed := strings.HasPrefix(path, "<") && strings.HasSuffix(path, ">")
	if enforceBrackets && !bracketed {
		return nil, fmt.Errorf("address %q must be enclosed in angle brackets", path)
	}
	if bracketed {
		path = path[1 : len(path)-1]
	}

	// Strip an RFC 5321 source route: "@one,@two:user@domain"
	if strings.HasPrefix(path, "@") {
		if colon := strings.Index(path, ":"); colon >= 0 {
			path = path[colon+1:]
		}
	}

	return NewAddress(path)
}

// FullAddress returns the normalized user@domain form.
func (a *Address) FullAddress() string {
	return a.fullAddress
}

// LocalPart returns the part before the "@".
func (a *Address) LocalPart() string {
	return a.localPart
}

// Domain returns the lowercased domain.
func (a *Address) Domain() string {
	return a.domain
}

func (a *Address) String() string {
	return a.fullAddress
}
