// Package sslcert inspects the TLS certificate a target presents.
//
// The handshake deliberately skips chain verification so that untrusted,
// expired or mismatched certificates can be examined instead of aborting
// the probe. Trust failures become findings, never errors.
package sslcert

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/CodeMonkeyCybersecurity/hera/internal/config"
	"github.com/CodeMonkeyCybersecurity/hera/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/hera/internal/logger"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/target"
	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const Source = "ssl_cert"

// ocspResponseLimit caps how much of a responder reply gets read.
const ocspResponseLimit = 64 * 1024

type Extractor struct {
	cfg *config.DetectionConfig
	log *logger.Logger
}

func New(cfg *config.DetectionConfig, log *logger.Logger) *Extractor {
	return &Extractor{
		cfg: cfg,
		log: log.WithComponent("sslcert"),
	}
}

func (e *Extractor) Name() string {
	return Source
}

func (e *Extractor) Extract(ctx context.Context, tgt *target.Target) types.ExtractorResult {
	// A plain http URL advertises no TLS endpoint at all. That absence is a
	// deterministic fact about the URL, not a probe failure.
	if tgt.Scheme == "http" {
		return types.ExtractorResult{
			Source: Source,
			Status: types.StatusOK,
			Findings: []types.Finding{{
				Kind:     types.KindCertAbsent,
				Weight:   e.cfg.Weight(types.KindCertAbsent),
				Evidence: "URL uses plain http, no certificate offered",
			}},
		}
	}

	certs, err := e.fetchChain(ctx, tgt)
	if err != nil {
		uerr := &types.ExtractorUnavailableError{Source: Source, Err: err}
		e.log.LogError(ctx, uerr, "sslcert.fetch_chain", "host", tgt.Host)
		return types.ExtractorResult{
			Source: Source,
			Status: types.StatusUnavailable,
			Findings: []types.Finding{{
				Kind:     types.KindCertUnverifiable,
				Weight:   e.cfg.Weight(types.KindCertUnverifiable),
				Evidence: fmt.Sprintf("TLS handshake with %s failed: %v", tgt.Host, err),
			}},
		}
	}

	findings := e.inspectChain(tgt, certs)

	status := types.StatusOK
	if revoked, ok, rerr := e.checkRevocation(ctx, certs); rerr != nil {
		// The certificate itself was read fine, only the revocation
		// probe came up short.
		e.log.WithContext(ctx).Debugw("OCSP check incomplete",
			"host", tgt.Host,
			"error", rerr.Error(),
		)
		status = types.StatusPartial
	} else if ok {
		findings = append(findings, revoked)
	}

	e.log.WithContext(ctx).Debugw("Certificate inspection complete",
		"host", tgt.Host,
		"chain_length", len(certs),
		"findings", len(findings),
		"status", string(status),
	)

	return types.ExtractorResult{
		Source:   Source,
		Status:   status,
		Findings: findings,
	}
}

func (e *Extractor) fetchChain(ctx context.Context, tgt *target.Target) ([]*x509.Certificate, error) {
	port := tgt.Port
	if port == "" {
		port = "443"
	}
	addr := net.JoinHostPort(tgt.Host, port)

	dialer := &net.Dialer{Timeout: e.cfg.Timeouts.SSLTimeout()}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	if !tgt.IsIPLiteral() {
		tlsConfig.ServerName = tgt.Host
	}

	conn := tls.Client(tcpConn, tlsConfig)
	conn.SetDeadline(time.Now().Add(e.cfg.Timeouts.SSLTimeout()))
	if err := conn.HandshakeContext(ctx); err != nil {
		tcpConn.Close()
		return nil, err
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, errors.New("server presented no certificates")
	}
	return certs, nil
}

func (e *Extractor) inspectChain(tgt *target.Target, certs []*x509.Certificate) []types.Finding {
	findings := []types.Finding{}
	leaf := certs[0]
	now := time.Now()

	if now.After(leaf.NotAfter) {
		findings = append(findings, types.Finding{
			Kind:   types.KindCertExpired,
			Weight: e.cfg.Weight(types.KindCertExpired),
			Evidence: fmt.Sprintf("certificate expired %s (%d days ago)",
				leaf.NotAfter.Format("2006-01-02"), int(now.Sub(leaf.NotAfter).Hours()/24)),
		})
	}

	if now.Before(leaf.NotBefore) {
		findings = append(findings, types.Finding{
			Kind:   types.KindCertNotYetValid,
			Weight: e.cfg.Weight(types.KindCertNotYetValid),
			Evidence: fmt.Sprintf("certificate not valid until %s",
				leaf.NotBefore.Format("2006-01-02")),
		})
	}

	if err := leaf.VerifyHostname(tgt.Host); err != nil {
		names := strings.Join(leaf.DNSNames, ", ")
		if names == "" {
			names = leaf.Subject.CommonName
		}
		findings = append(findings, types.Finding{
			Kind:     types.KindCertHostnameMismatch,
			Weight:   e.cfg.Weight(types.KindCertHostnameMismatch),
			Evidence: fmt.Sprintf("certificate is for %s, not %s", names, tgt.Host),
		})
	}

	if isSelfSigned(leaf) {
		findings = append(findings, types.Finding{
			Kind:     types.KindCertSelfSigned,
			Weight:   e.cfg.Weight(types.KindCertSelfSigned),
			Evidence: fmt.Sprintf("certificate for %s is self-signed", leaf.Subject.CommonName),
		})
	} else if untrusted(certs) {
		findings = append(findings, types.Finding{
			Kind:     types.KindCertUntrustedIssuer,
			Weight:   e.cfg.Weight(types.KindCertUntrustedIssuer),
			Evidence: fmt.Sprintf("chain does not lead to a trusted root (issuer %s)", leaf.Issuer.CommonName),
		})
	}

	return findings
}

// checkRevocation asks the leaf's OCSP responder whether the certificate has
// been revoked. The bool reports whether a revocation finding was produced;
// the error marks the probe as incomplete.
func (e *Extractor) checkRevocation(ctx context.Context, certs []*x509.Certificate) (types.Finding, bool, error) {
	leaf := certs[0]
	if len(leaf.OCSPServer) == 0 || len(certs) < 2 {
		// No responder advertised or no issuer in hand, nothing to ask.
		return types.Finding{}, false, nil
	}
	issuer := certs[1]

	reqBytes, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return types.Finding{}, false, fmt.Errorf("building OCSP request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, leaf.OCSPServer[0], bytes.NewReader(reqBytes))
	if err != nil {
		return types.Finding{}, false, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	client := httpclient.NewProbeClient(e.cfg.Timeouts.SSLTimeout())
	resp, err := client.Do(httpReq)
	if err != nil {
		return types.Finding{}, false, fmt.Errorf("querying OCSP responder: %w", err)
	}
	defer httpclient.CloseBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, ocspResponseLimit))
	if err != nil {
		return types.Finding{}, false, err
	}

	parsed, err := ocsp.ParseResponseForCert(body, leaf, issuer)
	if err != nil {
		return types.Finding{}, false, fmt.Errorf("parsing OCSP response: %w", err)
	}

	if parsed.Status == ocsp.Revoked {
		return types.Finding{
			Kind:   types.KindCertRevoked,
			Weight: e.cfg.Weight(types.KindCertRevoked),
			Evidence: fmt.Sprintf("OCSP responder reports certificate revoked at %s",
				parsed.RevokedAt.Format("2006-01-02")),
		}, true, nil
	}
	return types.Finding{}, false, nil
}

func isSelfSigned(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawIssuer, cert.RawSubject)
}

func untrusted(certs []*x509.Certificate) bool {
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	// Expiry and hostname problems are reported separately, so only an
	// unknown authority counts here.
	_, err := certs[0].Verify(x509.VerifyOptions{Intermediates: intermediates})
	var unknownAuthority x509.UnknownAuthorityError
	return errors.As(err, &unknownAuthority)
}
