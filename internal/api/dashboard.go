// internal/api/dashboard.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDashboard mounts the single-page analyzer UI at the root path.
// The page is a convenience entry point for operators and drives the same
// authenticated /api/v1/analyze endpoint the browser extension uses; the
// API token is entered on the page and kept in memory only.
func (h *Handlers) RegisterDashboard(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.String(http.StatusOK, dashboardHTML)
	})
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Hera - URL Risk Analyzer</title>
    <style>
        :root {
            --bg-primary: #09090B;
            --bg-card: #131314;
            --bg-hover: #1f1f21;
            --border-color: rgba(212, 162, 127, 0.15);
            --text-primary: #FAFAF5;
            --text-secondary: #9ca3af;
            --text-muted: #6b7280;
            --accent-primary: #D4A27F;
            --accent-secondary: #EBDBBC;
            --accent-dark: #09090B;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container {
            max-width: 860px;
            margin: 0 auto;
            padding: 40px 20px;
        }

        h1 {
            font-size: 2.5rem;
            margin-bottom: 10px;
            color: var(--accent-primary);
            font-weight: 400;
            letter-spacing: -0.02em;
        }

        .subtitle {
            color: var(--text-muted);
            margin-bottom: 30px;
            font-size: 1rem;
        }

        .card {
            background: var(--bg-card);
            border-radius: 12px;
            padding: 24px;
            border: 1px solid var(--border-color);
            box-shadow: 0 1px 3px rgba(0,0,0,0.3);
            margin-bottom: 24px;
        }

        label {
            display: block;
            color: var(--text-secondary);
            font-size: 0.875rem;
            margin-bottom: 6px;
        }

        input {
            width: 100%;
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            color: var(--text-primary);
            padding: 10px 14px;
            font-size: 1rem;
            margin-bottom: 16px;
        }

        input:focus {
            outline: none;
            border-color: var(--accent-primary);
        }

        .analyze-btn {
            background: var(--accent-primary);
            color: var(--accent-dark);
            border: none;
            padding: 10px 24px;
            border-radius: 8px;
            cursor: pointer;
            font-size: 0.95rem;
            font-weight: 500;
        }

        .analyze-btn:hover { background: var(--accent-secondary); }
        .analyze-btn:disabled { opacity: 0.5; cursor: wait; }

        .verdict-header {
            display: flex;
            align-items: baseline;
            gap: 14px;
            margin-bottom: 16px;
        }

        .score { font-size: 2.5rem; font-weight: 500; }

        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 16px;
            font-size: 0.75rem;
            font-weight: 500;
            text-transform: uppercase;
            letter-spacing: 0.05em;
        }

        .tier-safe {
            background: rgba(16, 185, 129, 0.15);
            color: #10b981;
            border: 1px solid rgba(16, 185, 129, 0.3);
        }

        .tier-suspicious {
            background: rgba(245, 158, 11, 0.15);
            color: #f59e0b;
            border: 1px solid rgba(245, 158, 11, 0.3);
        }

        .tier-malicious {
            background: rgba(239, 68, 68, 0.15);
            color: #ef4444;
            border: 1px solid rgba(239, 68, 68, 0.3);
        }

        .pill {
            background: rgba(107, 114, 128, 0.15);
            color: #9ca3af;
            border: 1px solid rgba(107, 114, 128, 0.3);
        }

        h2 {
            font-size: 1.1rem;
            margin: 20px 0 10px;
            color: var(--accent-secondary);
            font-weight: 400;
        }

        .finding {
            background: var(--bg-hover);
            padding: 12px 16px;
            margin: 8px 0;
            border-radius: 8px;
            border-left: 3px solid var(--accent-primary);
            font-size: 0.9rem;
        }

        .finding-kind { color: var(--accent-secondary); font-weight: 500; }
        .finding-weight { color: var(--text-muted); margin-left: 8px; }
        .finding-evidence { color: var(--text-secondary); margin-top: 4px; }

        .recommendation {
            color: var(--text-secondary);
            font-size: 0.9rem;
            margin: 4px 0 4px 16px;
        }

        .extractors { display: flex; flex-wrap: wrap; gap: 8px; }

        .extractor {
            font-size: 0.75rem;
            padding: 3px 10px;
            border-radius: 12px;
            border: 1px solid var(--border-color);
            color: var(--text-secondary);
        }

        .extractor.ok { color: #10b981; }
        .extractor.partial { color: #f59e0b; }
        .extractor.unavailable { color: #ef4444; }

        .meta {
            color: var(--text-muted);
            font-size: 0.8rem;
            margin-top: 16px;
        }

        .error {
            color: #ef4444;
            padding: 12px 0;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Hera</h1>
        <p class="subtitle">URL phishing risk analysis</p>

        <div class="card">
            <label for="token">API token</label>
            <input type="password" id="token" placeholder="Bearer token (HERA_API_TOKEN)" autocomplete="off">
            <label for="url">URL to analyze</label>
            <input type="text" id="url" placeholder="https://example.com/login" autocomplete="off">
            <button class="analyze-btn" id="analyzeBtn" onclick="analyze()">Analyze</button>
            <div id="error" class="error" style="display: none;"></div>
        </div>

        <div class="card" id="result" style="display: none;">
            <div class="verdict-header">
                <div class="score" id="score">-</div>
                <span class="badge" id="tier"></span>
                <span class="badge pill" id="whitelisted" style="display: none;">whitelisted</span>
                <span class="badge pill" id="cached" style="display: none;">cached</span>
            </div>
            <div id="findingsSection">
                <h2>Findings</h2>
                <div id="findings"></div>
            </div>
            <h2>Recommendations</h2>
            <div id="recommendations"></div>
            <h2>Extractors</h2>
            <div class="extractors" id="extractors"></div>
            <div class="meta" id="meta"></div>
        </div>
    </div>

    <script>
        async function analyze() {
            const token = document.getElementById('token').value.trim();
            const url = document.getElementById('url').value.trim();
            const btn = document.getElementById('analyzeBtn');
            const errBox = document.getElementById('error');

            errBox.style.display = 'none';
            if (!url) {
                showError('Enter a URL to analyze');
                return;
            }

            btn.disabled = true;
            try {
                const res = await fetch('/api/v1/analyze', {
                    method: 'POST',
                    headers: {
                        'Content-Type': 'application/json',
                        'Authorization': 'Bearer ' + token
                    },
                    body: JSON.stringify({ url: url })
                });
                const data = await res.json();
                if (!res.ok) {
                    showError(data.error || ('Request failed: ' + res.status));
                    return;
                }
                render(data);
            } catch (error) {
                showError('Request failed: ' + error.message);
            } finally {
                btn.disabled = false;
            }
        }

        function render(report) {
            document.getElementById('result').style.display = 'block';
            document.getElementById('score').textContent = report.score;

            const tier = document.getElementById('tier');
            tier.textContent = report.tier;
            tier.className = 'badge tier-' + report.tier;

            document.getElementById('whitelisted').style.display = report.whitelisted ? 'inline-block' : 'none';
            document.getElementById('cached').style.display = report.cached ? 'inline-block' : 'none';

            const findings = document.getElementById('findings');
            findings.innerHTML = '';
            if (!report.findings || report.findings.length === 0) {
                findings.innerHTML = '<div class="recommendation">No risk signals detected.</div>';
            } else {
                report.findings.forEach(f => {
                    const div = document.createElement('div');
                    div.className = 'finding';
                    div.innerHTML = '<span class="finding-kind">' + escapeHtml(f.kind) + '</span>' +
                        '<span class="finding-weight">+' + f.weight + '</span>' +
                        (f.evidence ? '<div class="finding-evidence">' + escapeHtml(f.evidence) + '</div>' : '');
                    findings.appendChild(div);
                });
            }

            const recs = document.getElementById('recommendations');
            recs.innerHTML = '';
            (report.recommendations || []).forEach(r => {
                const div = document.createElement('div');
                div.className = 'recommendation';
                div.textContent = r;
                recs.appendChild(div);
            });

            const extractors = document.getElementById('extractors');
            extractors.innerHTML = '';
            const statuses = report.extractor_status || {};
            Object.keys(statuses).sort().forEach(name => {
                const span = document.createElement('span');
                span.className = 'extractor ' + statuses[name];
                span.textContent = name + ': ' + statuses[name];
                extractors.appendChild(span);
            });

            document.getElementById('meta').textContent =
                report.url + ' analyzed in ' + report.duration_ms + 'ms';
        }

        function showError(message) {
            const errBox = document.getElementById('error');
            errBox.textContent = message;
            errBox.style.display = 'block';
        }

        function escapeHtml(text) {
            const div = document.createElement('div');
            div.textContent = text;
            return div.innerHTML;
        }

        document.getElementById('url').addEventListener('keydown', e => {
            if (e.key === 'Enter') analyze();
        });
    </script>
</body>
</html>`
