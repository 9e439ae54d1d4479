package entities

// Substitution is a therapeutic equivalence between two CIS codes.
type Substitution struct {
	CodeCISOrigine      string  `json:"code_cis_origine"`
	DenominationOrigine string  `json:"denomination_origine"`
	CodeCISCible        string  `json:"code_cis_cible"`
	DenominationCible   string  `json:"denomination_cible"`
	ScoreSimilarite     float64 `json:"score_similarite"`
	TypeEquivalence     string  `json:"type_equivalence"`
	Raison              string  `json:"raison"`
}

// EMAIncident is a shortage reported by the European Medicines Agency.
type EMAIncident struct {
	CISCode         string `json:"code_cis"`
	ActiveSubstance string `json:"active_substance"`
	BrandName       string `json:"brand_name"`
	ShortageStart   Date   `json:"shortage_start"`
	ShortageEnd     Date   `json:"shortage_end"`
	ShortageStatus  string `json:"shortage_status"`
	ActualExpected  string `json:"actual_expected"`
}

// Sale is the yearly number of boxes sold for one presentation.
type Sale struct {
	CodeCIS      string `json:"code_cis"`
	CIP13        string `json:"cip13"`
	ProductLabel string `json:"product_label"`
	Year         int    `json:"year"`
	TotalBoxes   int64  `json:"total_boxes"`
}

// SearchResult is one product suggestion returned by the search endpoint.
type SearchResult struct {
	ProductID       int    `json:"product_id"`
	Product         string `json:"product"`
	AccentedProduct string `json:"accented_product"`
	LatestEndDate   Date   `json:"latest_end_date"`
	LatestStartDate Date   `json:"latest_start_date"`
	Statuses        string `json:"statuses"`
	IsDiscontinued  bool   `json:"is_discontinued"`
	InCurrentFilter bool   `json:"in_current_filter"`
	CurrentStatus   Status `json:"current_status"`
}

// ATCClassRow is one (ATC class, molecule) pair seen in recent incidents.
type ATCClassRow struct {
	ATCCode        string `json:"atc_code"`
	ATCDescription string `json:"atc_description"`
	MoleculeID     int    `json:"molecule_id"`
	MoleculeName   string `json:"molecule_name"`
}

// ATCClass is a first-level ATC class.
type ATCClass struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Molecule is a molecule with the ATC class it was seen under.
type Molecule struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ATCClass string `json:"atcClass"`
}

// AppConfig is what /api/config exposes to clients.
type AppConfig struct {
	APIBaseURL string `json:"API_BASE_URL"`
}

// Catalog is the reference data served to filter pickers: the ATC classes
// and molecules seen in recent incidents, plus the global report date.
type Catalog struct {
	ReportDate Date       `json:"report_date"`
	ATCClasses []ATCClass `json:"atc_classes"`
	Molecules  []Molecule `json:"molecules"`
}
