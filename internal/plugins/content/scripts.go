package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"

	"github.com/CodeMonkeyCybersecurity/hera/pkg/types"
)

const (
	maxInlineScripts = 20
	maxScriptBytes   = 256 * 1024

	// scriptRunBudget bounds each sandboxed run; obfuscated loaders like
	// to spin until a debugger gives up.
	scriptRunBudget = 250 * time.Millisecond

	escapeDensityThreshold = 20
)

// probeShims fakes the browser globals that obfuscated droppers lean on,
// counting every decode or dynamic-eval call instead of performing it.
const probeShims = `
var __hera = { evals: 0, decodes: 0, writes: 0, charcodes: 0 };
function eval(s) { __hera.evals++; return undefined; }
function atob(s) { __hera.decodes++; return ""; }
function btoa(s) { return ""; }
function unescape(s) { __hera.decodes++; return ""; }
var __fromCharCode = String.fromCharCode;
String.fromCharCode = function() { __hera.charcodes += arguments.length; return __fromCharCode.apply(String, arguments); };
function setTimeout(f, t) { if (typeof f === "string") { __hera.evals++; } return 0; }
function setInterval(f, t) { if (typeof f === "string") { __hera.evals++; } return 0; }
var document = {
	write: function() { __hera.writes++; },
	writeln: function() { __hera.writes++; },
	createElement: function() { return { setAttribute: function() {}, appendChild: function() {} }; },
	getElementById: function() { return null; },
	querySelector: function() { return null; },
	addEventListener: function() {},
	cookie: "",
	location: { href: "", hostname: "" }
};
var window = this;
var location = document.location;
var navigator = { userAgent: "" };
`

type obfuscationCounts struct {
	evals     int64
	decodes   int64
	writes    int64
	charcodes int64
}

// analyzeScripts inspects inline scripts statically and then runs them in a
// throwaway JS interpreter wired with counting shims, so that obfuscation
// shows up as behavior even when the source is unreadable.
func (e *Extractor) analyzeScripts(ctx context.Context, doc *goquery.Document) (types.Finding, bool) {
	scripts := collectInlineScripts(doc)
	if len(scripts) == 0 {
		return types.Finding{}, false
	}

	var markers []string
	for _, src := range scripts {
		markers = append(markers, staticMarkers(src)...)
	}

	counts := e.sandboxRun(ctx, scripts)
	if counts.evals > 0 && (counts.decodes > 0 || counts.charcodes >= 50) {
		markers = append(markers, fmt.Sprintf("decode-and-eval chain (evals=%d, decodes=%d, charcodes=%d)",
			counts.evals, counts.decodes, counts.charcodes))
	}
	if counts.writes > 0 && counts.decodes > 0 {
		markers = append(markers, fmt.Sprintf("document.write of decoded payload (writes=%d)", counts.writes))
	}

	if len(markers) == 0 {
		return types.Finding{}, false
	}
	return types.Finding{
		Kind:     types.KindObfuscatedScripts,
		Weight:   e.cfg.Weight(types.KindObfuscatedScripts),
		Evidence: strings.Join(dedupe(markers), "; "),
	}, true
}

func collectInlineScripts(doc *goquery.Document) []string {
	var scripts []string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, external := s.Attr("src"); external {
			return true
		}
		if typ, ok := s.Attr("type"); ok && typ != "" && !strings.Contains(typ, "javascript") {
			return true
		}
		src := s.Text()
		if strings.TrimSpace(src) == "" {
			return true
		}
		if len(src) > maxScriptBytes {
			src = src[:maxScriptBytes]
		}
		scripts = append(scripts, src)
		return len(scripts) < maxInlineScripts
	})
	return scripts
}

func staticMarkers(src string) []string {
	var markers []string

	if strings.Contains(src, "eval(function(p,a,c,k,e,") {
		markers = append(markers, "packer signature")
	}

	if density := strings.Count(src, `\x`) + strings.Count(src, `\u00`); density > escapeDensityThreshold {
		markers = append(markers, fmt.Sprintf("dense character escapes (%d)", density))
	}

	if _, err := parser.ParseFile(nil, "", src, 0); err != nil && len(src) > 40 {
		markers = append(markers, "syntactically invalid inline script")
	}

	return markers
}

// sandboxRun executes each script against the counting shims. Scripts are
// hostile input: every run is bounded by an interrupt timer and shielded
// from interpreter panics.
func (e *Extractor) sandboxRun(ctx context.Context, scripts []string) obfuscationCounts {
	vm := goja.New()
	if _, err := vm.RunString(probeShims); err != nil {
		e.log.WithContext(ctx).Debugw("Script probe shims failed to load", "error", err.Error())
		return obfuscationCounts{}
	}

	for _, src := range scripts {
		if ctx.Err() != nil {
			break
		}
		runSandboxed(vm, src)
	}

	return readCounts(vm)
}

func runSandboxed(vm *goja.Runtime, src string) {
	timer := time.AfterFunc(scriptRunBudget, func() {
		vm.Interrupt("script budget exceeded")
	})
	defer timer.Stop()
	defer vm.ClearInterrupt()
	defer func() {
		// Arbitrary JS can blow the interpreter up; the counters
		// gathered before the panic are still useful.
		_ = recover()
	}()

	_, _ = vm.RunString(src)
}

func readCounts(vm *goja.Runtime) obfuscationCounts {
	val := vm.Get("__hera")
	if val == nil {
		return obfuscationCounts{}
	}
	exported, ok := val.Export().(map[string]interface{})
	if !ok {
		return obfuscationCounts{}
	}
	return obfuscationCounts{
		evals:     toInt64(exported["evals"]),
		decodes:   toInt64(exported["decodes"]),
		writes:    toInt64(exported["writes"]),
		charcodes: toInt64(exported["charcodes"]),
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
