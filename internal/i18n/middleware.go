package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

// Middleware picks a localizer per request from the Accept-Language header,
// falling back to lang.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chosen := lang
			if accept := r.Header.Get("Accept-Language"); accept != "" && matcher != nil {
				tags, _, err := language.ParseAcceptLanguage(accept)
				if err == nil && len(tags) > 0 {
					tag, _, _ := matcher.Match(tags...)
					chosen = baseOf(tag)
				}
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(chosen, lang))
			ctx = context.WithValue(ctx, langCtxKey{}, chosen)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
