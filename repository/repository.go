// Package repository runs the named incident queries and maps their rows onto
// entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/interfaces"
	"github.com/lib/pq"
)

// ErrProductNotFound is returned when no product matches a lookup
var ErrProductNotFound = errors.New("product not found")

// Compile-time check to ensure Repository implements IncidentRepository
var _ interfaces.IncidentRepository = (*Repository)(nil)

// Repository reads incidents and their reference data from PostgreSQL
type Repository struct {
	db interfaces.Querier
}

// New wraps a querier, usually a *database.DB
func New(db interfaces.Querier) *Repository {
	return &Repository{db: db}
}

// IncidentsQuery expands the incidents query with the optional filters of f.
// $1 is always monthsToShow; filters take the next placeholders in order.
func IncidentsQuery(f entities.FilterState) (string, []any, error) {
	args := []any{f.MonthsToShow}
	var filters strings.Builder

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		p := next("%" + term + "%")
		fmt.Fprintf(&filters, " AND (p.name ILIKE %s OR m.name ILIKE %s)", p, p)
	}

	if f.VaccinesOnly {
		filters.WriteString(" AND p.atc_code LIKE 'J07%'")
	}

	if f.ATCClass != "" {
		fmt.Fprintf(&filters, " AND ca.code = %s", next(f.ATCClass))
	}

	if f.MoleculeID != "" {
		ids, err := parseMoleculeIDs(f.MoleculeID)
		if err != nil {
			return "", nil, err
		}
		if strings.Contains(f.MoleculeID, ",") {
			fmt.Fprintf(&filters, " AND m.id = ANY(%s::int[])", next(pq.Array(ids)))
		} else {
			fmt.Fprintf(&filters, " AND m.id = %s", next(ids[0]))
		}
	}

	query := strings.Replace(database.MustLoad(database.QueryIncidents), database.AdditionalFiltersMarker, filters.String(), 1)
	return query, args, nil
}

func parseMoleculeIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid molecule id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("invalid molecule filter %q", raw)
	}
	return ids, nil
}

// Incidents returns the filtered incidents with their CIS names attached
func (r *Repository) Incidents(ctx context.Context, f entities.FilterState) ([]entities.Incident, error) {
	query, args, err := IncidentsQuery(f)
	if err != nil {
		return nil, err
	}

	incidents, err := r.queryIncidents(ctx, database.QueryIncidents, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachCISNames(ctx, incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// IncidentsByProduct returns every incident of one product, newest first
func (r *Repository) IncidentsByProduct(ctx context.Context, productID int) ([]entities.Incident, error) {
	incidents, err := r.queryIncidents(ctx, database.QueryIncidentsByProduct,
		database.MustLoad(database.QueryIncidentsByProduct), productID)
	if err != nil {
		return nil, err
	}
	if err := r.attachCISNames(ctx, incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *Repository) queryIncidents(ctx context.Context, name, query string, args ...any) ([]entities.Incident, error) {
	rows, err := r.db.Query(ctx, name, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	incidents := make([]entities.Incident, 0)
	for rows.Next() {
		var (
			inc      entities.Incident
			accented sql.NullString
			status   sql.NullString
			cis      pq.StringArray
		)
		if err := rows.Scan(
			&inc.ID,
			&inc.ProductID,
			&inc.Product,
			&accented,
			&status,
			&inc.StartDate,
			&inc.EndDate,
			&inc.CalculatedEndDate,
			&inc.UpdatedDate,
			&inc.LastReportDate,
			&cis,
			&inc.Molecule,
			&inc.MoleculeID,
			&inc.ATCCode,
			&inc.ClasseATC,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		inc.AccentedProduct = accented.String
		inc.Status = entities.Status(status.String)
		inc.CISCodes = entities.CISCodes(cis)
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return incidents, nil
}

// attachCISNames sets cis_names on every incident; unknown codes map to ""
func (r *Repository) attachCISNames(ctx context.Context, incidents []entities.Incident) error {
	seen := make(map[string]struct{})
	var codes []string
	for _, inc := range incidents {
		for _, code := range inc.CISCodes {
			if _, ok := seen[code]; !ok {
				seen[code] = struct{}{}
				codes = append(codes, code)
			}
		}
	}

	names := make(map[string]string, len(codes))
	if len(codes) > 0 {
		rows, err := r.db.Query(ctx, database.QueryCISNames, database.MustLoad(database.QueryCISNames), pq.Array(codes))
		if err != nil {
			return fmt.Errorf("query %s: %w", database.QueryCISNames, err)
		}
		defer rows.Close()

		for rows.Next() {
			var code string
			var name sql.NullString
			if err := rows.Scan(&code, &name); err != nil {
				return fmt.Errorf("scan %s: %w", database.QueryCISNames, err)
			}
			names[code] = name.String
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate %s: %w", database.QueryCISNames, err)
		}
	}

	for i := range incidents {
		incidents[i].CISNames = make(map[string]string, len(incidents[i].CISCodes))
		for _, code := range incidents[i].CISCodes {
			incidents[i].CISNames[code] = names[code]
		}
	}
	return nil
}

// ProductByName looks a product up by its plain or accented name, case-insensitively,
// and loads its incidents.
func (r *Repository) ProductByName(ctx context.Context, name string) (entities.Product, error) {
	rows, err := r.db.Query(ctx, database.QueryProductByName, database.MustLoad(database.QueryProductByName), strings.ToLower(name))
	if err != nil {
		return entities.Product{}, fmt.Errorf("query %s: %w", database.QueryProductByName, err)
	}

	var (
		p        entities.Product
		accented sql.NullString
		classe   sql.NullInt64
		cis      pq.StringArray
		found    bool
	)
	if rows.Next() {
		found = true
		err = rows.Scan(&p.ID, &p.Name, &accented, &p.ATCCode, &classe, &cis)
	}
	if err == nil {
		err = rows.Err()
	}
	_ = rows.Close()
	if err != nil {
		return entities.Product{}, fmt.Errorf("scan %s: %w", database.QueryProductByName, err)
	}
	if !found {
		return entities.Product{}, ErrProductNotFound
	}

	p.AccentedName = accented.String
	p.CISCodes = entities.CISCodes(cis)
	if classe.Valid {
		id := int(classe.Int64)
		p.ClasseATCID = &id
	}

	p.Incidents, err = r.queryIncidents(ctx, database.QueryIncidentsByProduct,
		database.MustLoad(database.QueryIncidentsByProduct), p.ID)
	if err != nil {
		return entities.Product{}, err
	}
	return p, nil
}

// Search returns at most 20 products whose name or molecule matches term
func (r *Repository) Search(ctx context.Context, term string, monthsToShow int) ([]entities.SearchResult, error) {
	rows, err := r.db.Query(ctx, database.QuerySearchProducts, database.MustLoad(database.QuerySearchProducts),
		"%"+term+"%", monthsToShow)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", database.QuerySearchProducts, err)
	}
	defer rows.Close()

	results := make([]entities.SearchResult, 0)
	for rows.Next() {
		var (
			res      entities.SearchResult
			accented sql.NullString
			status   string
		)
		if err := rows.Scan(
			&res.ProductID,
			&res.Product,
			&accented,
			&res.LatestEndDate,
			&res.LatestStartDate,
			&res.Statuses,
			&res.IsDiscontinued,
			&res.InCurrentFilter,
			&status,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", database.QuerySearchProducts, err)
		}
		res.AccentedProduct = accented.String
		res.CurrentStatus = entities.Status(status)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", database.QuerySearchProducts, err)
	}
	return results, nil
}

// Substitutions returns the equivalences where cisCode is origin or target
func (r *Repository) Substitutions(ctx context.Context, cisCode string) ([]entities.Substitution, error) {
	rows, err := r.db.Query(ctx, database.QuerySubstitutions, database.MustLoad(database.QuerySubstitutions), cisCode)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", database.QuerySubstitutions, err)
	}
	defer rows.Close()

	subs := make([]entities.Substitution, 0)
	for rows.Next() {
		var s entities.Substitution
		var origine, cible, kind sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&s.CodeCISOrigine, &origine, &s.CodeCISCible, &cible, &score, &kind, &s.Raison); err != nil {
			return nil, fmt.Errorf("scan %s: %w", database.QuerySubstitutions, err)
		}
		s.DenominationOrigine = origine.String
		s.DenominationCible = cible.String
		s.ScoreSimilarite = score.Float64
		s.TypeEquivalence = kind.String
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", database.QuerySubstitutions, err)
	}
	return subs, nil
}

// EMAIncidents returns the EMA shortages linked to any of the CIS codes
func (r *Repository) EMAIncidents(ctx context.Context, cisCodes []string) ([]entities.EMAIncident, error) {
	rows, err := r.db.Query(ctx, database.QueryEMAIncidentsByCIS, database.MustLoad(database.QueryEMAIncidentsByCIS), pq.Array(cisCodes))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", database.QueryEMAIncidentsByCIS, err)
	}
	defer rows.Close()

	incidents := make([]entities.EMAIncident, 0)
	for rows.Next() {
		var e entities.EMAIncident
		if err := rows.Scan(&e.CISCode, &e.ActiveSubstance, &e.BrandName, &e.ShortageStart, &e.ShortageEnd, &e.ShortageStatus, &e.ActualExpected); err != nil {
			return nil, fmt.Errorf("scan %s: %w", database.QueryEMAIncidentsByCIS, err)
		}
		incidents = append(incidents, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", database.QueryEMAIncidentsByCIS, err)
	}
	return incidents, nil
}

// SalesByCIS returns yearly box sales per CIP13 for the CIS codes
func (r *Repository) SalesByCIS(ctx context.Context, cisCodes []string) ([]entities.Sale, error) {
	rows, err := r.db.Query(ctx, database.QuerySalesByCIS, database.MustLoad(database.QuerySalesByCIS), pq.Array(cisCodes))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", database.QuerySalesByCIS, err)
	}
	defer rows.Close()

	sales := make([]entities.Sale, 0)
	for rows.Next() {
		var s entities.Sale
		if err := rows.Scan(&s.CodeCIS, &s.CIP13, &s.ProductLabel, &s.Year, &s.TotalBoxes); err != nil {
			return nil, fmt.Errorf("scan %s: %w", database.QuerySalesByCIS, err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", database.QuerySalesByCIS, err)
	}
	return sales, nil
}

// ATCClasses returns the (class, molecule) pairs seen in the last monthsToShow months
func (r *Repository) ATCClasses(ctx context.Context, monthsToShow int) ([]entities.ATCClassRow, error) {
	rows, err := r.db.Query(ctx, database.QueryATCClasses, database.MustLoad(database.QueryATCClasses), monthsToShow)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", database.QueryATCClasses, err)
	}
	defer rows.Close()

	classes := make([]entities.ATCClassRow, 0)
	for rows.Next() {
		var c entities.ATCClassRow
		var desc sql.NullString
		if err := rows.Scan(&c.ATCCode, &desc, &c.MoleculeID, &c.MoleculeName); err != nil {
			return nil, fmt.Errorf("scan %s: %w", database.QueryATCClasses, err)
		}
		c.ATCDescription = desc.String
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", database.QueryATCClasses, err)
	}
	return classes, nil
}

// MaxReportDate returns the latest calculated end date across all incidents
func (r *Repository) MaxReportDate(ctx context.Context) (entities.Date, error) {
	rows, err := r.db.Query(ctx, database.QueryMaxReportDate, database.MustLoad(database.QueryMaxReportDate))
	if err != nil {
		return entities.Date{}, fmt.Errorf("query %s: %w", database.QueryMaxReportDate, err)
	}
	defer rows.Close()

	var d entities.Date
	if rows.Next() {
		if err := rows.Scan(&d); err != nil {
			return entities.Date{}, fmt.Errorf("scan %s: %w", database.QueryMaxReportDate, err)
		}
	}
	if err := rows.Err(); err != nil {
		return entities.Date{}, fmt.Errorf("iterate %s: %w", database.QueryMaxReportDate, err)
	}
	return d, nil
}
