package filter

import "strings"

var categorySynonyms = map[string][]string{
	"ssd":         {"nvme", "solid state", "armazenamento", "storage"},
	"gpu":         {"placa de video", "placa de vídeo", "graphics card", "video card"},
	"cpu":         {"processador", "processor"},
	"ram":         {"memoria", "memória", "memory"},
	"motherboard": {"placa mae", "placa-mãe", "placa mãe", "mobo"},
	"psu":         {"fonte", "power supply"},
	"case":        {"gabinete", "chassis"},
	"cooler":      {"water cooler", "air cooler", "cooling"},
	"monitor":     {"tela", "display", "screen"},
	"peripheral":  {"periferico", "periférico", "mouse", "teclado", "keyboard", "headset"},
}

type categoryMatcher struct {
	exactAliases []string
	normalized   map[string]struct{}
}

func newCategoryMatcher(wanted string) categoryMatcher {
	aliases := categoryAliasList(wanted)
	if len(aliases) == 0 {
		return categoryMatcher{}
	}

	normalized := make(map[string]struct{}, len(aliases))
	for _, alias := range aliases {
		normalized[normalizeCategory(alias)] = struct{}{}
	}

	return categoryMatcher{
		exactAliases: aliases,
		normalized:   normalized,
	}
}

func categoryAliasList(wanted string) []string {
	raw := strings.TrimSpace(wanted)
	group := resolveCategoryGroup(wanted)
	if raw == "" && group == "" {
		return nil
	}

	out := make([]string, 0, 2+len(categorySynonyms[group]))
	addAlias := func(alias string) {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			return
		}
		for _, existing := range out {
			if strings.EqualFold(existing, alias) {
				return
			}
		}
		out = append(out, alias)
	}

	addAlias(raw)
	addAlias(group)
	for _, s := range categorySynonyms[group] {
		addAlias(s)
	}
	return out
}

func resolveCategoryGroup(wanted string) string {
	norm := normalizeCategory(wanted)
	if norm == "" {
		return ""
	}

	if _, ok := categorySynonyms[norm]; ok {
		return norm
	}
	for key, synonyms := range categorySynonyms {
		for _, s := range synonyms {
			if normalizeCategory(s) == norm {
				return key
			}
		}
	}
	return norm
}

func (m categoryMatcher) matches(category string) bool {
	trimmed := strings.TrimSpace(category)
	if trimmed == "" {
		return false
	}
	for _, alias := range m.exactAliases {
		if strings.EqualFold(trimmed, alias) {
			return true
		}
	}

	_, ok := m.normalized[normalizeCategory(trimmed)]
	return ok
}

// normalizeCategory folds case, accents, separators and a trailing plural so
// "Placas-de-Vídeo" and "placa de video" compare equal.
func normalizeCategory(raw string) string {
	s := strings.ReplaceAll(Normalize(raw), "-", " ")
	if s == "" {
		return ""
	}
	words := strings.Fields(s)
	for i, w := range words {
		switch {
		case len(w) > 4 && strings.HasSuffix(w, "ies"):
			words[i] = strings.TrimSuffix(w, "ies") + "y"
		case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, " ")
}
