// Package content fetches the page behind a URL and scores what it finds
// there: credential forms, off-site form targets, link farms, brand names
// the domain has no claim to, and obfuscated scripts.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const Source = "content"

// userAgent mirrors a mainstream browser. Phishing kits routinely cloak
// against obvious bot agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// minLinkSample is the smallest link count worth computing a density over.
const minLinkSample = 5

type fetchedPage struct {
	body      []byte
	finalURL  *url.URL
	truncated bool
}

type Extractor struct {
	cfg    *config.DetectionConfig
	log    *logger.Logger
	client *http.Client
}

func New(cfg *config.DetectionConfig, log *logger.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		log:    log.WithComponent("content"),
		client: httpclient.NewFetchClient(cfg.Timeouts.ContentTimeout(), cfg.MaxRedirects, cfg.AllowPrivateHosts),
	}
}

func (e *Extractor) Name() string {
	return Source
}

func (e *Extractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	page, err := e.fetch(ctx, tgt)
	if err != nil {
		uerr := &types.ExtractorUnavailableError{Source: Source, Err: err}
		e.log.LogError(ctx, uerr, "content.fetch", "url", tgt.URL)
		return types.ExtractorResult{
			Source:   Source,
			Status:   types.StatusUnavailable,
			Findings: []types.Finding{},
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.body))
	if err != nil {
		uerr := &types.ExtractorUnavailableError{Source: Source, Err: err}
		e.log.LogError(ctx, uerr, "content.parse", "url", tgt.URL)
		return types.ExtractorResult{
			Source:   Source,
			Status:   types.StatusUnavailable,
			Findings: []types.Finding{},
		}
	}

	findings := []types.Finding{}
	findings = append(findings, e.analyzeForms(doc, tgt, page.finalURL)...)
	if f, hit := e.analyzeLinks(doc, tgt); hit {
		findings = append(findings, f)
	}
	if f, hit := e.analyzeBrand(doc, tgt); hit {
		findings = append(findings, f)
	}
	if f, hit := e.analyzeScripts(ctx, doc); hit {
		findings = append(findings, f)
	}

	status := types.StatusOK
	if page.truncated {
		// The checks only saw a prefix of the page.
		status = types.StatusPartial
	}

	e.log.WithContext(ctx).Debugw("Content analysis complete",
		"url", tgt.URL,
		"bytes", len(page.body),
		"truncated", page.truncated,
		"findings", len(findings),
	)

	return types.ExtractorResult{
		Source:   Source,
		Status:   status,
		Findings: findings,
	}
}

func (e *Extractor) fetch(ctx context.Context, tgt *target.Target) (*fetchedPage, error) {
	if e.cfg.UseBrowser {
		page, err := e.renderPage(ctx, tgt)
		if err == nil {
			return page, nil
		}
		// A missing Chrome binary should degrade to a plain fetch, not
		// kill the extractor.
		e.log.WithContext(ctx).Warnw("Browser render failed, falling back to plain fetch",
			"url", tgt.URL,
			"error", err.Error(),
		)
	}
	return e.plainFetch(ctx, tgt)
}

func (e *Extractor) plainFetch(ctx context.Context, tgt *target.Target) (*fetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tgt.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("non-HTML content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}

	page := &fetchedPage{finalURL: resp.Request.URL}
	if int64(len(body)) > e.cfg.MaxBodyBytes {
		page.body = body[:e.cfg.MaxBodyBytes]
		page.truncated = true
	} else {
		page.body = body
	}
	return page, nil
}

// analyzeForms flags credential forms and forms whose action leaves the
// target's site. A password field is the strongest tell a page wants
// credentials, whatever the surrounding markup claims; a card-number
// autocomplete field is the payment-side equivalent.
func (e *Extractor) analyzeForms(doc *goquery.Document, tgt *target.Target, base *url.URL) []types.Finding {
	findings := []types.Finding{}
	var loginEvidence, crossEvidence []string

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		hasPassword := form.Find("input[type='password']").Length() > 0
		if !hasPassword {
			form.Find("input").EachWithBreak(func(_ int, input *goquery.Selection) bool {
				name, _ := input.Attr("name")
				if strings.Contains(strings.ToLower(name), "pass") {
					hasPassword = true
					return false
				}
				return true
			})
		}
		hasCardField := form.Find("input[autocomplete*='cc-number']").Length() > 0

		action, _ := form.Attr("action")
		resolved := resolveAction(base, action)

		if hasPassword || hasCardField {
			field := "password"
			if !hasPassword {
				field = "card-number"
			}
			dest := "the same page"
			if resolved != nil && resolved.Host != "" {
				dest = resolved.Host
			}
			loginEvidence = append(loginEvidence, fmt.Sprintf("%s form posts to %s", field, dest))
		}

		if resolved != nil && resolved.Host != "" && !sameSite(tgt, resolved.Hostname()) {
			kind := "form"
			if hasPassword || hasCardField {
				kind = "credential form"
			}
			crossEvidence = append(crossEvidence, fmt.Sprintf("%s submits to %s", kind, resolved.Host))
		}
	})

	if len(loginEvidence) > 0 {
		findings = append(findings, types.Finding{
			Kind:     types.KindLoginFormPresent,
			Weight:   e.cfg.Weight(types.KindLoginFormPresent),
			Evidence: strings.Join(loginEvidence, "; "),
		})
	}
	if len(crossEvidence) > 0 {
		findings = append(findings, types.Finding{
			Kind:     types.KindCrossDomainForm,
			Weight:   e.cfg.Weight(types.KindCrossDomainForm),
			Evidence: strings.Join(crossEvidence, "; "),
		})
	}
	return findings
}

func (e *Extractor) analyzeLinks(doc *goquery.Document, tgt *target.Target) (types.Finding, bool) {
	var total, external int

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		parsed, err := url.Parse(strings.TrimSpace(href))
		if err != nil || parsed.Hostname() == "" {
			// Relative links stay on-site.
			if err == nil && href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
				total++
			}
			return
		}
		total++
		if !sameSite(tgt, parsed.Hostname()) {
			external++
		}
	})

	if total < minLinkSample {
		return types.Finding{}, false
	}
	ratio := float64(external) / float64(total)
	if ratio <= e.cfg.ExternalLinkRatio {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindExternalLinkDensity,
		Weight:   e.cfg.Weight(types.KindExternalLinkDensity),
		Evidence: fmt.Sprintf("%d of %d links leave %s", external, total, tgt.Host),
	}, true
}

// analyzeBrand fires when the page presents itself as a major brand the
// domain has no claim to. Headings and the title are where phishing pages
// put the brand; body text is too noisy to trust.
func (e *Extractor) analyzeBrand(doc *goquery.Document, tgt *target.Target) (types.Finding, bool) {
	title := doc.Find("title").First().Text()
	headings := doc.Find("h1, h2").Text()
	haystack := strings.ToLower(title + " " + headings)

	if strings.TrimSpace(haystack) == "" {
		return types.Finding{}, false
	}

	var claimed []string
	for _, brand := range e.cfg.BrandKeywords {
		norm := strings.ToLower(strings.ReplaceAll(brand, " ", ""))
		if norm == "" || !strings.Contains(strings.ReplaceAll(haystack, " ", ""), norm) {
			continue
		}
		if domainOwnsBrand(tgt.RegistrableDomain, norm) {
			continue
		}
		claimed = append(claimed, brand)
	}

	if len(claimed) == 0 {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindBrandImpersonation,
		Weight:   e.cfg.Weight(types.KindBrandImpersonation),
		Evidence: fmt.Sprintf("page presents as %s on unrelated domain %s", strings.Join(claimed, ", "), tgt.Host),
	}, true
}

func resolveAction(base *url.URL, action string) *url.URL {
	action = strings.TrimSpace(action)
	if action == "" || base == nil {
		return nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return nil
	}
	return base.ResolveReference(ref)
}

// sameSite reports whether host belongs to the target's registrable domain.
func sameSite(tgt *target.Target, host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == tgt.Host {
		return true
	}
	if tgt.RegistrableDomain == "" {
		return false
	}
	base, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil && base == tgt.RegistrableDomain
}

// domainOwnsBrand reports whether the registrable domain is the brand's own
// ("paypal.com" owns "paypal", "paypal-secure.evil.tk" does not).
func domainOwnsBrand(registrable, brand string) bool {
	if registrable == "" {
		return false
	}
	label := registrable
	if idx := strings.Index(registrable, "."); idx > 0 {
		label = registrable[:idx]
	}
	return label == brand
}
