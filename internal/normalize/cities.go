package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ileDeFranceCities is the allow-list of communes the pipeline accepts,
// in canonical display form.
var ileDeFranceCities = []string{
	"Paris", "Boulogne-Billancourt", "Saint-Denis", "Argenteuil", "Montreuil",
	"Créteil", "Nanterre", "Courbevoie", "Versailles", "Rueil-Malmaison",
	"Aubervilliers", "Champigny-sur-Marne", "Saint-Maur-des-Fossés", "Drancy",
	"Issy-les-Moulineaux", "Levallois-Perret", "Antony", "Noisy-le-Grand",
	"Villejuif", "Clichy", "Ivry-sur-Seine", "Maisons-Alfort", "Neuilly-sur-Seine",
	"Clamart", "Pantin", "Bondy", "Fontenay-sous-Bois", "Bobigny", "Rosny-sous-Bois",
	"Vincennes", "Châtillon", "Colombes", "Aulnay-sous-Bois", "Sarcelles",
	"Puteaux", "Gennevilliers", "Alfortville", "Meudon",
	"Saint-Ouen", "Corbeil-Essonnes", "Vitry-sur-Seine", "Bagnolet", "Bagneux",
	"Cergy", "Houilles", "Romainville", "Le Blanc-Mesnil", "Châtenay-Malabry",
	"Fresnes", "Saint-Cloud", "Sevran", "Livry-Gargan", "Meaux", "Melun",
	"Pontoise", "Évry", "Sartrouville", "Garges-lès-Gonesse", "Franconville",
	"Goussainville", "Roissy-en-Brie", "Thiais", "Villeneuve-Saint-Georges",
	"Montrouge", "Noisy-le-Sec", "Malakoff", "Sucy-en-Brie", "Saint-Germain-en-Laye",
	"Massy", "Palaiseau", "Trappes", "Conflans-Sainte-Honorine", "Chelles",
	"Bois-Colombes", "Villiers-sur-Marne", "Épinay-sur-Seine", "Maisons-Laffitte",
	"Poissy", "Montigny-le-Bretonneux", "Yerres", "Le Perreux-sur-Marne",
	"Villeparisis", "Neuilly-Plaisance", "Cachan", "Saint-Mandé", "Deuil-la-Barre",
	"Pierrefitte-sur-Seine", "Villeneuve-la-Garenne", "Saint-Gratien", "Ermont",
	"Chatou", "Le Kremlin-Bicêtre", "Villiers-le-Bel", "Montfermeil", "Dugny",
	"La Garenne-Colombes", "Stains", "Limeil-Brévannes", "Villemomble",
	"Bry-sur-Marne", "Nogent-sur-Marne", "Gournay-sur-Marne", "Le Bourget",
	"Fontenay-aux-Roses", "Arcueil", "Gentilly", "Le Plessis-Robinson",
}

// foldTransformer strips diacritics: NFD decomposition, drop combining
// marks, recompose.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldCity reduces a city or location string to a comparable key:
// lowercase, no diacritics, punctuation collapsed to single spaces.
func foldCity(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

type cityEntry struct {
	key     string
	display string
}

// cityIndex holds folded keys sorted longest-first so that compound names
// win over their substrings.
var cityIndex = buildCityIndex()

func buildCityIndex() []cityEntry {
	var entries []cityEntry
	for _, city := range ileDeFranceCities {
		key := foldCity(city)
		entries = append(entries, cityEntry{key: key, display: city})
		// Job postings routinely abbreviate Saint- to St-.
		if strings.HasPrefix(key, "saint ") {
			entries = append(entries, cityEntry{
				key:     "st " + strings.TrimPrefix(key, "saint "),
				display: city,
			})
		}
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && len(entries[j].key) > len(entries[j-1].key); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries
}

// ExtractCity finds a known Île-de-France commune in free location text
// and returns its canonical name. A bare regional mention maps to Paris.
// Returns "" when nothing matches.
func ExtractCity(location string) string {
	if strings.TrimSpace(location) == "" {
		return ""
	}
	haystack := " " + foldCity(location) + " "
	for _, entry := range cityIndex {
		if strings.Contains(haystack, " "+entry.key+" ") {
			return entry.display
		}
	}
	if strings.Contains(haystack, " ile de france ") {
		return "Paris"
	}
	return ""
}
