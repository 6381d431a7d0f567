// Package geo holds the reference geography for the dashboard: the
// canonical list of French department codes and their names. Query
// results are zero-filled against this list so absent departments
// render as zero rather than being omitted.
package geo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var numericCode = regexp.MustCompile(`^\d+$`)

// NormalizeCode brings a raw department code to its canonical form:
// trimmed, uppercased, INSEE numeric variants of Corsica mapped back to
// 2A/2B, and pure-numeric codes zero-padded to two characters ("1"
// becomes "01"; overseas codes such as "971" are already three wide).
func NormalizeCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	switch code {
	case "201":
		return "2A"
	case "202":
		return "2B"
	}
	if numericCode.MatchString(code) && len(code) < 2 {
		code = "0" + code
	}
	return code
}

// MetropolitanCodes returns the 96 metropolitan codes: 01..95 except 20,
// then 2A and 2B.
func MetropolitanCodes() []string {
	codes := make([]string, 0, 96)
	for i := 1; i <= 95; i++ {
		if i == 20 {
			continue
		}
		codes = append(codes, fmt.Sprintf("%02d", i))
	}
	return append(codes, "2A", "2B")
}

// Codes returns the full reference geography: the 96 metropolitan codes
// plus the five overseas departments, in a stable sort order with 2A/2B
// placed where 20 would be.
func Codes() []string {
	codes := append(MetropolitanCodes(), "971", "972", "973", "974", "976")
	sort.Slice(codes, func(i, j int) bool {
		return sortKey(codes[i]) < sortKey(codes[j])
	})
	return codes
}

// IsKnown reports whether the code belongs to the reference geography.
func IsKnown(code string) bool {
	_, ok := names[code]
	return ok
}

// Name returns the department name, or "Département" for a code the
// table does not know (mirrors the fallback of the boundary dataset).
func Name(code string) string {
	if n, ok := names[code]; ok {
		return n
	}
	return "Département"
}

// sortKey lets 2A/2B sort between 19 and 21.
func sortKey(code string) string {
	return strings.NewReplacer("A", "0A", "B", "0B").Replace(code)
}

var names = map[string]string{
	"01": "Ain", "02": "Aisne", "03": "Allier", "04": "Alpes-de-Haute-Provence",
	"05": "Hautes-Alpes", "06": "Alpes-Maritimes", "07": "Ardèche", "08": "Ardennes",
	"09": "Ariège", "10": "Aube", "11": "Aude", "12": "Aveyron",
	"13": "Bouches-du-Rhône", "14": "Calvados", "15": "Cantal", "16": "Charente",
	"17": "Charente-Maritime", "18": "Cher", "19": "Corrèze", "21": "Côte-d'Or",
	"22": "Côtes-d'Armor", "23": "Creuse", "24": "Dordogne", "25": "Doubs",
	"26": "Drôme", "27": "Eure", "28": "Eure-et-Loir", "29": "Finistère",
	"2A": "Corse-du-Sud", "2B": "Haute-Corse", "30": "Gard", "31": "Haute-Garonne",
	"32": "Gers", "33": "Gironde", "34": "Hérault", "35": "Ille-et-Vilaine",
	"36": "Indre", "37": "Indre-et-Loire", "38": "Isère", "39": "Jura",
	"40": "Landes", "41": "Loir-et-Cher", "42": "Loire", "43": "Haute-Loire",
	"44": "Loire-Atlantique", "45": "Loiret", "46": "Lot", "47": "Lot-et-Garonne",
	"48": "Lozère", "49": "Maine-et-Loire", "50": "Manche", "51": "Marne",
	"52": "Haute-Marne", "53": "Mayenne", "54": "Meurthe-et-Moselle", "55": "Meuse",
	"56": "Morbihan", "57": "Moselle", "58": "Nièvre", "59": "Nord",
	"60": "Oise", "61": "Orne", "62": "Pas-de-Calais", "63": "Puy-de-Dôme",
	"64": "Pyrénées-Atlantiques", "65": "Hautes-Pyrénées", "66": "Pyrénées-Orientales",
	"67": "Bas-Rhin", "68": "Haut-Rhin", "69": "Rhône", "70": "Haute-Saône",
	"71": "Saône-et-Loire", "72": "Sarthe", "73": "Savoie", "74": "Haute-Savoie",
	"75": "Paris", "76": "Seine-Maritime", "77": "Seine-et-Marne", "78": "Yvelines",
	"79": "Deux-Sèvres", "80": "Somme", "81": "Tarn", "82": "Tarn-et-Garonne",
	"83": "Var", "84": "Vaucluse", "85": "Vendée", "86": "Vienne",
	"87": "Haute-Vienne", "88": "Vosges", "89": "Yonne", "90": "Territoire de Belfort",
	"91": "Essonne", "92": "Hauts-de-Seine", "93": "Seine-Saint-Denis",
	"94": "Val-de-Marne", "95": "Val-d'Oise",
	"971": "Guadeloupe", "972": "Martinique", "973": "Guyane", "974": "La Réunion",
	"976": "Mayotte",
}
