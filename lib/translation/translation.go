package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Configure loads message catalogs from localesDir for lang. Without a
// catalog every message falls back to its English template.
func Configure(localesDir, lang string) {
	gotext.Configure(localesDir, strings.ToLower(lang), "default")
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
