package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/triac-dimmer/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Triac Dimmer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Triac Dimmer{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Output</h2>
<table>
<tr><th>Brightness</th><td id="brightness" class="{{if not .Calibrated}}unknown{{else if gt .Percent 0}}on{{else}}off{{end}}">{{if .Calibrated}}{{.Percent}}%{{else}}CALIBRATING{{end}}</td></tr>
<tr><th>Dim target</th><td id="dim-target">{{.DimTarget}} ticks</td></tr>
<tr><th>Ready</th><td>{{if .Calibrated}}yes{{else}}no{{end}}</td></tr>
</table>
{{if .Calibrated}}
<form method="post" action="/brightness">
<input type="number" name="percent" min="0" max="100" value="{{.Percent}}">
<button type="submit">Set</button>
</form>

<h2>Calibration</h2>
<table>
<tr><th>Half-cycle</th><td>{{.Bounds.AvgPeriod}} ticks</td></tr>
<tr><th>Min delay</th><td>{{.Bounds.MinDelay}} ticks</td></tr>
<tr><th>Max delay</th><td>{{.Bounds.MaxDelay}} ticks</td></tr>
</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counters</h2>
<table>
<tr><th>Ticks</th><td>{{.Stats.Ticks}}</td></tr>
<tr><th>Crossings</th><td>{{.Stats.Crossings}}</td></tr>
<tr><th>Fires</th><td>{{.Stats.Fires}}</td></tr>
<tr><th>Timeouts</th><td>{{.Stats.Timeouts}}</td></tr>
<tr><th>Faults</th><td>{{.Stats.Faults}}</td></tr>
<tr><th>Read errors</th><td>{{.Stats.ReadErrors}}</td></tr>
<tr><th>Write errors</th><td>{{.Stats.WriteErrors}}</td></tr>
<tr><th>Dropped edges</th><td>{{.Stats.DroppedEdges}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickUs}}&micro;s</td></tr>
<tr><th>Pulse width</th><td>{{.Config.PulseWidth}} ticks</td></tr>
<tr><th>Safety timeout</th><td>{{.Config.SafetyTimeout}} ticks</td></tr>
<tr><th>GPIO driver</th><td>{{.Config.Driver}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.StateTopic}}";
  var dot = document.getElementById("live-dot");
  var brEl = document.getElementById("brightness");
  var dtEl = document.getElementById("dim-target");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.dimmer) {
        brEl.textContent = msg.dimmer.brightness + "%";
        brEl.className = msg.dimmer.state === "ON" ? "on" : "off";
        dtEl.textContent = msg.dimmer.dim_target + " ticks";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		StateTopic string
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		StateTopic: snap.Config.StateTopic,
	}
	indexTmpl.Execute(w, data)
}
