package handlers

import (
	"html/template"
	"net/url"
)

const (
	pageRedirect  = "redirect.html"
	pageChecking  = "checking.html"
	pageRemaining = "remaining.html"
	pageError     = "error.html"
)

// checkingDelay is how long the "checking" page waits before sending the user
// to the dashboard.
const checkingDelay = 3

const layout = `{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if .Target}}<meta http-equiv="refresh" content="{{.Delay}};url={{.Target}}">{{end}}
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#0b0b14;color:#eee;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
.card{max-width:28rem;padding:2rem;border-radius:12px;background:#171726;text-align:center}
a.button{display:inline-block;margin-top:1rem;padding:.6rem 1.2rem;border-radius:8px;background:#f97316;color:#fff;text-decoration:none}
code{font-size:.85rem;color:#aaa}
</style>
</head>
<body><div class="card">{{end}}
{{define "foot"}}</div></body></html>{{end}}`

const pages = `
{{define "redirect.html"}}{{template "head" .}}
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .OrderID}}<p><code>{{.OrderID}}</code></p>{{end}}
<a class="button" href="{{.Target}}">Continue</a>
{{template "foot" .}}{{end}}

{{define "checking.html"}}{{template "head" .}}
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<p><code>{{.OrderID}}</code></p>
<p>You will be taken to your dashboard in {{.Delay}} seconds.</p>
<a class="button" href="{{.Target}}">Go now</a>
{{template "foot" .}}{{end}}

{{define "remaining.html"}}{{template "head" .}}
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<p>Amount due: <strong>&#8377;{{printf "%.2f" .Amount}}</strong></p>
<p><code>{{.OrderID}}</code></p>
<a class="button" href="{{.PaymentURL}}">Pay remaining amount</a>
{{template "foot" .}}{{end}}

{{define "error.html"}}{{template "head" .}}
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .OrderID}}<p><code>order_id: {{.OrderID}}</code></p>{{end}}
{{if .Detail}}<p><code>{{.Detail}}</code></p>{{end}}
{{if .Target}}<a class="button" href="{{.Target}}">Back to dashboard</a>{{end}}
{{template "foot" .}}{{end}}
`

// Page is the data every callback page renders.
type Page struct {
	Title      string
	Message    string
	OrderID    string
	Target     string
	Delay      int
	Amount     float64
	PaymentURL string
	Detail     string
}

// Templates parses the callback pages for gin's HTML renderer.
func Templates() *template.Template {
	return template.Must(template.New("pages").Parse(layout + pages))
}

// dashboardTarget appends the payment outcome to the dashboard URL.
func dashboardTarget(dashboardURL, outcome, orderID string) string {
	u, err := url.Parse(dashboardURL)
	if err != nil {
		return dashboardURL
	}
	q := u.Query()
	q.Set("payment", outcome)
	if orderID != "" {
		q.Set("order_id", orderID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
