package main

import (
	"github.com/jjYBdx4IL/james-protocols/config"
)

// smtpPolicy adapts a config.SMTPConfig section to the server.Configuration
// interface the protocol handlers consult.
type smtpPolicy struct {
	cfg *config.SMTPConfig
}

func (p *smtpPolicy) HelloName() string {
	return p.cfg.HelloNameOrDefault()
}

func (p *smtpPolicy) Greeting() string {
	return p.cfg.Greeting
}

func (p *smtpPolicy) MaxMessageSize() int64 {
	return p.cfg.MaxMessageSize
}

func (p *smtpPolicy) IsRelayingAllowed(remoteIP string) bool {
	return p.cfg.IsRelayingAllowed(remoteIP)
}

func (p *smtpPolicy) IsAuthRequired(remoteIP string) bool {
	return p.cfg.IsAuthRequired(remoteIP)
}

func (p *smtpPolicy) UseAddressBracketsEnforcement() bool {
	return p.cfg.RequireBrackets
}

func (p *smtpPolicy) UseHeloEhloEnforcement() bool {
	return p.cfg.RequireHelo
}

// pop3Policy adapts a config.POP3Config section. The mail-transaction
// accessors are inert for POP3.
type pop3Policy struct {
	cfg      *config.POP3Config
	hostname string
}

func (p *pop3Policy) HelloName() string {
	return p.hostname
}

func (p *pop3Policy) Greeting() string {
	return p.cfg.Greeting
}

func (p *pop3Policy) MaxMessageSize() int64 {
	return 0
}

func (p *pop3Policy) IsRelayingAllowed(remoteIP string) bool {
	return false
}

func (p *pop3Policy) IsAuthRequired(remoteIP string) bool {
	return true
}

func (p *pop3Policy) UseAddressBracketsEnforcement() bool {
	return false
}

func (p *pop3Policy) UseHeloEhloEnforcement() bool {
	return false
}
