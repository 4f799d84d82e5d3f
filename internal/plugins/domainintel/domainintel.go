// Package domainintel looks up the registration record behind a target's
// domain. Freshly registered domains and privacy-masked registrants are the
// two WHOIS signals phishing campaigns leave behind; a host that no longer
// resolves at all is a third.
package domainintel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/miekg/dns"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const Source = "domain_intel"

// whoisLookup is the slice of the likexian client this extractor needs.
// *whois.Client satisfies it as-is; tests substitute canned records.
type whoisLookup interface {
	Whois(domain string, servers ...string) (string, error)
}

// dateLayouts are the creation-date formats registries actually emit, tried
// in order when the parser leaves only the raw string.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"02.01.2006",
}

// privacyMarkers flag registrant fields masked by a proxy service. Matched
// case-insensitively as substrings.
var privacyMarkers = []string{
	"redacted for privacy",
	"whoisguard",
	"domains by proxy",
	"withheld for privacy",
	"contact privacy",
	"identity protect",
	"privacy service",
	"data protected",
	"privacy protect",
}

type Extractor struct {
	cfg       *config.DetectionConfig
	log       *logger.Logger
	whois     whoisLookup
	dns       *dns.Client
	resolvers []string
}

func New(cfg *config.DetectionConfig, log *logger.Logger) *Extractor {
	return &Extractor{
		cfg:       cfg,
		log:       log.WithComponent("domainintel"),
		whois:     whois.NewClient().SetTimeout(cfg.Timeouts.DomainTimeout()),
		dns:       &dns.Client{Timeout: cfg.Timeouts.DomainTimeout()},
		resolvers: resolverAddrs(cfg.Resolver),
	}
}

func (e *Extractor) Name() string {
	return Source
}

func (e *Extractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	// An IP literal has no registration record, and a bare label such as
	// "localhost" has no registrable domain either. Nothing to look up.
	if tgt.IsIPLiteral() || tgt.RegistrableDomain == "" {
		e.log.Debugw("No registrable domain, skipping lookup", "host", tgt.Host)
		return types.ExtractorResult{Source: Source, Status: types.StatusOK, Findings: []types.Finding{}}
	}

	findings := []types.Finding{}
	status := types.StatusOK

	nxdomain, dnsErr := e.resolveHost(ctx, tgt.Host)
	if dnsErr != nil {
		e.log.Debugw("DNS probe failed", "host", tgt.Host, "error", dnsErr)
		status = types.StatusPartial
	} else if nxdomain {
		findings = append(findings, types.Finding{
			Kind:     types.KindUnresolvableHost,
			Weight:   e.cfg.Weight(types.KindUnresolvableHost),
			Evidence: fmt.Sprintf("no DNS record for %s (NXDOMAIN)", tgt.Host),
		})
	}

	raw, err := e.whois.Whois(tgt.RegistrableDomain)
	if err != nil {
		uerr := &types.ExtractorUnavailableError{Source: Source, Err: err}
		e.log.LogError(ctx, uerr, "domainintel.whois", "domain", tgt.RegistrableDomain)
		return types.ExtractorResult{Source: Source, Status: types.StatusUnavailable, Findings: findings}
	}

	reg := parseRegistration(tgt.RegistrableDomain, raw)
	findings = append(findings, e.registrationFindings(reg)...)

	e.log.Debugw("Registration lookup completed",
		"domain", tgt.RegistrableDomain,
		"registrar", reg.Registrar,
		"has_created", reg.HasCreated,
		"findings", len(findings))

	return types.ExtractorResult{Source: Source, Status: status, Findings: findings}
}

// resolveHost asks each configured resolver for an A record until one
// answers. Reports nxdomain=true only on an authoritative NameError.
func (e *Extractor) resolveHost(ctx context.Context, host string) (bool, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	var lastErr error
	for _, resolver := range e.resolvers {
		r, _, err := e.dns.ExchangeContext(ctx, m, resolver)
		if err != nil {
			lastErr = err
			continue
		}
		switch r.Rcode {
		case dns.RcodeSuccess:
			return false, nil
		case dns.RcodeNameError:
			return true, nil
		default:
			lastErr = fmt.Errorf("resolver %s answered %s for %s", resolver, dns.RcodeToString[r.Rcode], host)
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no resolvers configured")
	}
	return false, lastErr
}

func (e *Extractor) registrationFindings(reg registration) []types.Finding {
	findings := []types.Finding{}

	switch {
	case reg.NotFound:
		findings = append(findings, types.Finding{
			Kind:     types.KindYoungDomain,
			Weight:   e.cfg.Weight(types.KindYoungDomain),
			Evidence: "no registration record found for domain",
		})
	case !reg.HasCreated:
		findings = append(findings, types.Finding{
			Kind:     types.KindYoungDomain,
			Weight:   e.cfg.Weight(types.KindYoungDomain),
			Evidence: "registration record carries no creation date",
		})
	default:
		days := int(time.Since(reg.Created).Hours() / 24)
		if days < e.cfg.MinDomainAgeDays {
			findings = append(findings, types.Finding{
				Kind:     types.KindYoungDomain,
				Weight:   e.cfg.Weight(types.KindYoungDomain),
				Evidence: fmt.Sprintf("registered %s, %d days ago", reg.Created.Format("2006-01-02"), days),
			})
		}
	}

	if marker := privacyMarker(reg.Registrant); marker != "" {
		findings = append(findings, types.Finding{
			Kind:     types.KindPrivacyProtected,
			Weight:   e.cfg.Weight(types.KindPrivacyProtected),
			Evidence: fmt.Sprintf("registrant masked by %q", marker),
		})
	}

	return findings
}

// registration is the subset of a WHOIS record the extractor scores on.
type registration struct {
	Registrar  string
	Registrant string
	Created    time.Time
	HasCreated bool
	NotFound   bool
}

func parseRegistration(domain, raw string) registration {
	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		if errors.Is(err, whoisparser.ErrNotFoundDomain) {
			return registration{NotFound: true}
		}
		return parseRegistrationManual(raw)
	}

	reg := registration{}
	if parsed.Registrar != nil {
		reg.Registrar = parsed.Registrar.Name
	}
	if parsed.Registrant != nil {
		reg.Registrant = strings.TrimSpace(strings.Join([]string{
			parsed.Registrant.Name,
			parsed.Registrant.Organization,
			parsed.Registrant.Email,
		}, " "))
	}
	if parsed.Domain != nil {
		if parsed.Domain.CreatedDateInTime != nil {
			reg.Created = *parsed.Domain.CreatedDateInTime
			reg.HasCreated = true
		} else if created, ok := parseWhoisDate(parsed.Domain.CreatedDate); ok {
			reg.Created = created
			reg.HasCreated = true
		}
	}
	return reg
}

// parseRegistrationManual extracts what it can from raw WHOIS text when the
// parser rejects the registry's format.
func parseRegistrationManual(raw string) registration {
	reg := registration{}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)

		value := func() string {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				return ""
			}
			return strings.TrimSpace(parts[1])
		}

		switch {
		case strings.HasPrefix(lower, "registrar:"):
			reg.Registrar = value()
		case strings.HasPrefix(lower, "registrant name:"),
			strings.HasPrefix(lower, "registrant organization:"),
			strings.HasPrefix(lower, "registrant:"):
			reg.Registrant = strings.TrimSpace(reg.Registrant + " " + value())
		case strings.HasPrefix(lower, "creation date:"),
			strings.HasPrefix(lower, "created:"),
			strings.HasPrefix(lower, "registered on:"):
			if created, ok := parseWhoisDate(value()); ok && !reg.HasCreated {
				reg.Created = created
				reg.HasCreated = true
			}
		}
	}

	return reg
}

func parseWhoisDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func privacyMarker(registrant string) string {
	lower := strings.ToLower(registrant)
	for _, marker := range privacyMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}

// resolverAddrs turns the configured resolver into dialable addresses.
// Empty means the system resolver from /etc/resolv.conf, with public
// resolvers as the final fallback.
func resolverAddrs(configured string) []string {
	if configured != "" {
		if _, _, err := net.SplitHostPort(configured); err != nil {
			return []string{net.JoinHostPort(configured, "53")}
		}
		return []string{configured}
	}
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		addrs := make([]string, 0, len(conf.Servers))
		for _, server := range conf.Servers {
			addrs = append(addrs, net.JoinHostPort(server, conf.Port))
		}
		return addrs
	}
	return []string{"8.8.8.8:53", "1.1.1.1:53"}
}
