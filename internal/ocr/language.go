/**
 * Language hint mapping
 *
 * Detection bundles speak BCP 47 tags ("en", "it", "pt-BR") while tesseract
 * wants ISO 639-3 traineddata names ("eng", "ita", "por"). The mapping is
 * resolved through x/text so regional variants collapse to their base
 * language.
 */

package ocr

import "golang.org/x/text/language"

// tesseractNames maps base language tags to tesseract traineddata names for
// the languages the detection bundles ship keywords for.
var tesseractNames = map[string]string{
	"en": "eng",
	"it": "ita",
	"fr": "fra",
	"de": "deu",
	"es": "spa",
	"pt": "por",
	"nl": "nld",
	"pl": "pol",
	"ro": "ron",
}

// TesseractCode resolves a BCP 47 language hint to a tesseract language
// code. Unknown or empty hints return "" so callers fall back to their
// configured defaults.
func TesseractCode(hint string) string {
	if hint == "" {
		return ""
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return tesseractNames[base.String()]
}
