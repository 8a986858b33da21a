package prescriptions

import (
	"regexp"
	"strings"
)

var medicationLine = regexp.MustCompile(`(?P<name>[\p{L}0-9\s\-]+?)\s+(?P<dosage>\d+(?:mg|g|ml|mcg))`)

// ParseLines reconoce líneas "<nombre> <n>(mg|g|ml|mcg)". Es deliberadamente
// simple; el redactor IA completa intervalos y horarios.
func ParseLines(text string) []ParsedItem {
	var out []ParsedItem
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}
		m := medicationLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[medicationLine.SubexpIndex("name")])
		if name == "" {
			continue
		}
		out = append(out, ParsedItem{
			MedicationName: name,
			Dosage:         m[medicationLine.SubexpIndex("dosage")],
			Instructions:   line,
		})
	}
	return out
}

// friendlyOCRMessage traduce errores conocidos del proveedor a un mensaje
// accionable para el usuario.
func friendlyOCRMessage(err error) string {
	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "BILLING_DISABLED"):
		return "OCR provider billing is disabled. Enable billing for the project or use another key."
	case strings.Contains(msg, "API_KEY_SERVICE_BLOCKED"):
		return "OCR API key is blocked for this service. Check the API permissions or rotate the key."
	case strings.Contains(msg, "PERMISSION_DENIED"):
		return "OCR provider denied permission. Review billing and key scopes."
	default:
		return "OCR provider request failed. Check the key and billing."
	}
}
