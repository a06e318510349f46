package webflow

import (
	"html/template"
	"net/http"
)

// ssoCheckedPage is the probe target. It runs inside the hidden frame and
// posts the race-deciding sso-check message to its parent. The target
// origin is pinned to the application origin so the result cannot leak to
// a foreign embedder.
var ssoCheckedPage = template.Must(template.New("sso-checked").Parse(`<!doctype html>
<html>
<head><title>SSO</title></head>
<body>
<script>
if (window.parent !== window) {
	window.parent.postMessage({type: "sso-check", sso: {{.SSO}}}, {{.Origin}});
}
</script>
</body>
</html>
`))

var errorPage = template.Must(template.New("auth-error").Parse(`<!doctype html>
<html>
<head><title>Sign-in failed</title></head>
<body>
<p>Sign-in failed. Close this window and try again.</p>
<script>
if (window.parent !== window) {
	window.parent.postMessage({type: "sso-check", sso: false}, {{.Origin}});
}
</script>
</body>
</html>
`))

// SSOChecked renders the probe target page. The sso query parameter decides
// the reported outcome; absent means success, matching the callback flow
// which only lands here after a session was established.
func (h *Handlers) SSOChecked(w http.ResponseWriter, r *http.Request) {
	sso := r.URL.Query().Get("sso") != "false"
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = ssoCheckedPage.Execute(w, struct {
		SSO    bool
		Origin string
	}{SSO: sso, Origin: h.cfg.App.URL})
}

// ErrorPage renders the generic failure page and reports SSO failure to an
// embedding parent frame if present.
func (h *Handlers) ErrorPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = errorPage.Execute(w, struct{ Origin string }{Origin: h.cfg.App.URL})
}
