package middleware

import (
	"net/http"

	"github.com/mssola/useragent"

	"medvault/pkg/requestcontext"
)

// ClientMetadata parses the User-Agent header and stashes a compact client
// description in the request context. The consent engine records it on
// ledger events for audit enrichment; it never influences decisions.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.New(r.UserAgent())
		browser, _ := ua.Browser()
		info := requestcontext.ClientInfo{
			Browser: browser,
			OS:      ua.OS(),
			Mobile:  ua.Mobile(),
			Bot:     ua.Bot(),
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithClientInfo(r.Context(), info)))
	})
}
