package middlewares

import (
	"luxio/locale"

	"github.com/gin-gonic/gin"
)

const (
	ContextLanguage = "language"
	languageCookie  = "luxio-language"
)

// LanguageMiddleware resolves the request language from the path prefix, ?lang=,
// the language cookie and Accept-Language, in that order. fallback applies when
// none of them names a supported language.
func LanguageMiddleware(fallback string) gin.HandlerFunc {
	return func(c *gin.Context) {
		stored, _ := c.Cookie(languageCookie)
		lang := locale.DetectOr(fallback, c.Request.URL.Path, c.Query("lang"), stored, c.GetHeader("Accept-Language"))
		c.Set(ContextLanguage, lang)
		c.Header("Content-Language", lang)
		c.Next()
	}
}

func Language(c *gin.Context) string {
	if v := c.GetString(ContextLanguage); v != "" {
		return v
	}
	return locale.Default
}
