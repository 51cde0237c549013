package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"clockTime": func(t time.Time) string {
		return t.Local().Format(feedback.TimeLayout)
	},
	"chimeText": feedback.ChimeText,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Tap Assist</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected, .ready { color: green; }
.disconnected, .waiting { color: red; }
.pending { color: orange; }
button { font-family: monospace; font-size: 1em; padding: 0.5em 1em; margin-right: 0.5em; }
</style>
</head>
<body>
<h1>Tap Assist</h1>

<h2>Gestures</h2>
<table>
<tr><th>Single tap</th><td>{{.Gestures.SingleTap}}</td></tr>
<tr><th>Double tap</th><td>{{.Gestures.DoubleTap}}</td></tr>
<tr><th>Long press</th><td>{{.Gestures.LongPress}}</td></tr>
<tr><th>Window</th><td>{{if .Classifier.WindowActive}}<span class="pending">open, {{.Classifier.PendingTaps}} pending</span>{{else}}idle{{end}}</td></tr>
{{if .LastGesture}}<tr><th>Last</th><td>{{.LastGesture.Gesture}} at {{clockTime .LastGesture.Timestamp}}</td></tr>{{end}}
<tr><th>Navigations</th><td>{{.Navigations}}</td></tr>
</table>

<form method="post" action="/input/tap" style="display:inline"><button type="submit">Tap</button></form>
<form method="post" action="/input/long-press" style="display:inline"><button type="submit">Long press</button></form>

<h2>Chimes</h2>
<table>
<tr><th>Enabled</th><td>{{if .Config.ChimeEnabled}}yes{{else}}no{{end}}</td></tr>
<tr><th>Fired</th><td>{{.Chimes}}</td></tr>
{{if .LastChime}}<tr><th>Last</th><td>{{chimeText .LastChime}}</td></tr>{{end}}
</table>

<h2>Feedback</h2>
<table>
<tr><th>Port</th><td class="{{if .FeedbackReady}}ready{{else}}waiting{{end}}">{{.Config.Backend}} {{if .FeedbackReady}}ready{{else}}not ready{{end}}</td></tr>
<tr><th>Spoken</th><td>{{.Feedback.Spoken}}{{if .Feedback.SpeechDropped}} ({{.Feedback.SpeechDropped}} dropped){{end}}</td></tr>
<tr><th>Haptics</th><td>{{.Feedback.Vibrated}}{{if .Feedback.HapticsDropped}} ({{.Feedback.HapticsDropped}} dropped){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tap window</th><td>{{.Config.WindowMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Config.LongPressMs}}ms</td></tr>
<tr><th>Chime poll</th><td>{{.Config.PollIntervalMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/history.json">History</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
