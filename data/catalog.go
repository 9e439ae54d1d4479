package data

import (
	"sort"
	"strings"

	"github.com/dispomed/dispomed-api/entities"
)

// BuildCatalog folds (ATC class, molecule) rows into the sorted class list and
// molecule map served by /api/catalog. A molecule seen under several classes
// keeps the last one.
func BuildCatalog(rows []entities.ATCClassRow, reportDate entities.Date) entities.Catalog {
	classes := make(map[string]string)
	molecules := make(map[int]entities.Molecule)

	for _, row := range rows {
		if row.ATCCode == "" {
			continue
		}
		if _, ok := classes[row.ATCCode]; !ok || row.ATCDescription != "" {
			classes[row.ATCCode] = row.ATCDescription
		}
		if row.MoleculeID != 0 {
			molecules[row.MoleculeID] = entities.Molecule{
				ID:       row.MoleculeID,
				Name:     row.MoleculeName,
				ATCClass: row.ATCCode,
			}
		}
	}

	catalog := entities.Catalog{
		ReportDate: reportDate,
		ATCClasses: make([]entities.ATCClass, 0, len(classes)),
		Molecules:  make([]entities.Molecule, 0, len(molecules)),
	}
	for code, name := range classes {
		catalog.ATCClasses = append(catalog.ATCClasses, entities.ATCClass{Code: code, Name: name})
	}
	for _, m := range molecules {
		catalog.Molecules = append(catalog.Molecules, m)
	}

	sort.Slice(catalog.ATCClasses, func(i, j int) bool {
		return catalog.ATCClasses[i].Code < catalog.ATCClasses[j].Code
	})
	sort.Slice(catalog.Molecules, func(i, j int) bool {
		a, b := strings.ToLower(catalog.Molecules[i].Name), strings.ToLower(catalog.Molecules[j].Name)
		if a != b {
			return a < b
		}
		return catalog.Molecules[i].ID < catalog.Molecules[j].ID
	})
	return catalog
}
