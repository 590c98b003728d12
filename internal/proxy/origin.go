package proxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewOriginProxy builds the upstream that relays admitted requests to
// the origin. Requests pass through as they arrived: the inbound Host
// is kept and no forwarding headers are added, so the origin sees what
// the edge sent (hop-by-hop headers excepted, as for any HTTP hop).
func NewOriginProxy(target *url.URL, logger *slog.Logger) *httputil.ReverseProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.LogAttrs(r.Context(), slog.LevelError,
				"origin request failed",
				slog.String("host", r.Host),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			writePlain(w, http.StatusBadGateway, "Bad Gateway")
		},
	}
}
