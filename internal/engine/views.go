package engine

import (
	"fmt"
	"slices"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

const (
	ViewCountryMap        = "country_map"
	ViewCountryYear       = "country_year"
	ViewSportBreakdown    = "sport_breakdown"
	ViewMedalTiers        = "medal_tiers"
	ViewTopSports         = "top_sports"
	ViewTopCountries      = "top_countries"
	ViewGoldTopCountries  = "gold_top_countries"
	ViewFocusTopSports    = "focus_top_sports"
	ViewFocusMedalsByYear = "focus_medals_by_year"
	ViewGenderMap         = "gender_map"

	SortBySport   = "sport"
	SortByCountry = "country"
)

// dimSortMode names the sort mode selection field in errors.
const dimSortMode models.Dimension = "sort_mode"

var (
	eventFields = setOf(fieldYear, fieldSeason, fieldCountry, fieldSport)
	tierField   = setOf(fieldMedal)
)

// viewDef describes one chart-ready view: its grouping key per sort mode,
// which selection fields it accepts and the fixed selection it always
// applies on top of the user's.
type viewDef struct {
	name  string
	kind  models.ViewKind
	modes []string // first is the default; a single "" means no sort modes
	keys  map[string][]field
	// accepts lists the selectable fields; fieldMedal stands for the tier.
	accepts fieldSet
	fixed   *Filter
	ranking bool
	coords  bool
	gender  bool
}

func single(key ...field) map[string][]field { return map[string][]field{"": key} }

func standardViews() []*viewDef {
	return []*viewDef{
		{
			name: ViewCountryMap, kind: models.KindMap, modes: []string{""},
			keys:    single(fieldCountry),
			accepts: eventFields | tierField, coords: true,
		},
		{
			name: ViewCountryYear, kind: models.KindMap, modes: []string{""},
			keys:    single(fieldCountry, fieldYear),
			accepts: eventFields | tierField, coords: true,
		},
		{
			name: ViewSportBreakdown, kind: models.KindHierarchy, modes: []string{SortBySport, SortByCountry},
			keys: map[string][]field{
				SortBySport:   {fieldSport, fieldCountry},
				SortByCountry: {fieldCountry, fieldSport},
			},
			accepts: eventFields | tierField,
		},
		{
			name: ViewMedalTiers, kind: models.KindTable, modes: []string{""},
			keys:    single(fieldCountry, fieldSport, fieldMedal),
			accepts: eventFields | tierField,
			fixed:   tierFilter(models.MedalGold, models.MedalSilver, models.MedalBronze),
		},
		{
			name: ViewTopSports, kind: models.KindRanking, modes: []string{""},
			keys:    single(fieldSport),
			accepts: eventFields | tierField, ranking: true,
		},
		{
			name: ViewTopCountries, kind: models.KindRanking, modes: []string{""},
			keys:    single(fieldCountry),
			accepts: eventFields | tierField, ranking: true,
		},
		{
			name: ViewGoldTopCountries, kind: models.KindRanking, modes: []string{""},
			keys:    single(fieldCountry),
			accepts: eventFields, ranking: true,
			fixed:   tierFilter(models.MedalGold),
		},
	}
}

// focusViews are the single-country charts; countryID is the focus
// country's dictionary ID.
func focusViews(countryID int32) []*viewDef {
	fixed := &Filter{}
	fixed.set(fieldCountry, []int32{countryID})
	return []*viewDef{
		{
			name: ViewFocusTopSports, kind: models.KindRanking, modes: []string{""},
			keys:    single(fieldSport),
			accepts: eventFields | tierField, ranking: true,
			fixed:   fixed,
		},
		{
			name: ViewFocusMedalsByYear, kind: models.KindTable, modes: []string{""},
			keys:    single(fieldYear),
			accepts: eventFields | tierField,
			fixed:   fixed,
		},
	}
}

func genderView() *viewDef {
	return &viewDef{
		name: ViewGenderMap, kind: models.KindMap, modes: []string{""},
		keys:    single(fieldYear, fieldCountry),
		accepts: setOf(fieldYear, fieldCountry), coords: true, gender: true,
	}
}

// order returns the grouping key for mode ("" selects the default).
func (v *viewDef) order(mode string) ([]field, string, error) {
	if mode == "" {
		mode = v.modes[0]
	}
	key, ok := v.keys[mode]
	if !ok {
		reason := fmt.Sprintf("view %s accepts sort modes %v", v.name, v.modes)
		if v.modes[0] == "" {
			reason = fmt.Sprintf("view %s has no sort modes", v.name)
		}
		return nil, "", &InvalidSelectionError{Dimension: dimSortMode, Value: mode, Reason: reason}
	}
	return key, mode, nil
}

// check rejects selection fields the view does not accept.
func (v *viewDef) check(f *Filter) error {
	for fl := field(0); fl < numFields; fl++ {
		if f.Has(fl) && !v.accepts.has(fl) {
			return &InvalidSelectionError{
				Dimension: fieldDimension(fl),
				Reason:    fmt.Sprintf("not supported by view %s", v.name),
			}
		}
	}
	return nil
}

func fieldDimension(fl field) models.Dimension {
	switch fl {
	case fieldYear:
		return models.DimYear
	case fieldSeason:
		return models.DimSeason
	case fieldCountry:
		return models.DimCountry
	case fieldSport:
		return models.DimSport
	}
	return dimTier
}

func fieldColumn(fl field) models.Column {
	switch fl {
	case fieldYear:
		return models.ColYear
	case fieldSeason:
		return models.ColSeason
	case fieldCountry:
		return models.ColCountry
	case fieldSport:
		return models.ColSport
	}
	return models.ColMedal
}

// columns is the fixed schema of the view for a given key order.
func (v *viewDef) columns(order []field) []models.Column {
	cols := make([]models.Column, 0, len(order)+4)
	for _, fl := range order {
		cols = append(cols, fieldColumn(fl))
	}
	if v.coords {
		cols = append(cols, models.ColLatitude, models.ColLongitude)
	}
	switch {
	case v.gender:
		cols = append(cols, models.ColCount, models.ColRatio)
	case v.ranking:
		cols = append(cols, models.ColMedals, models.ColParticipants)
	default:
		cols = append(cols, models.ColParticipants, models.ColMedals)
	}
	return cols
}

func (v *viewDef) info() models.ViewInfo {
	info := models.ViewInfo{
		Name:        v.name,
		Kind:        v.kind,
		Columns:     v.columns(v.keys[v.modes[0]]),
		AcceptsTier: v.accepts.has(fieldMedal),
	}
	for fl := range field(numFields) {
		if fl != fieldMedal && v.accepts.has(fl) {
			info.Dimensions = append(info.Dimensions, fieldDimension(fl))
		}
	}
	if v.modes[0] != "" {
		info.SortModes = slices.Clone(v.modes)
	}
	return info
}

// needs lists the cube field sets worth precomputing for v: its keys plus
// the fixed fields, with and without the commonly filtered year and tier.
func (v *viewDef) needs() []fieldSet {
	if v.gender {
		return nil
	}
	var fixed fieldSet
	if v.fixed != nil {
		fixed = v.fixed.fields()
	}
	var out []fieldSet
	for _, mode := range v.modes {
		base := setOf(v.keys[mode]...) | fixed
		out = append(out, base, base|setOf(fieldYear), base|tierField, base|setOf(fieldYear)|tierField)
	}
	return out
}

// --- ROWS ---

type group struct {
	key cellKey
	red Reduction
}

// sortGroups orders groups by key; ranking views order by medals
// descending with ties broken by key, and keep only the first topN.
func sortGroups(groups []group, order []field, ranking bool, topN int) []group {
	if !ranking {
		slices.SortFunc(groups, func(a, b group) int { return compareKeys(a.key, b.key, order) })
		return groups
	}
	groups = slices.DeleteFunc(groups, func(g group) bool { return g.red.Medals() == 0 })
	slices.SortFunc(groups, func(a, b group) int {
		if a.red.Medals() != b.red.Medals() {
			return b.red.Medals() - a.red.Medals()
		}
		return compareKeys(a.key, b.key, order)
	})
	if topN > 0 && len(groups) > topN {
		groups = groups[:topN]
	}
	return groups
}

func (ds *Dataset) row(k cellKey, order []field, red Reduction, coords bool) models.Row {
	r := models.Row{Participants: red.Participants(), Medals: red.Medals()}
	for _, fl := range order {
		switch fl {
		case fieldYear:
			r.Year = int(k[fl])
		case fieldSeason:
			r.Season = ds.store.SeasonDict[k[fl]]
		case fieldCountry:
			r.Country = ds.store.CountryDict[k[fl]]
			if coords {
				r.Latitude, r.Longitude = ds.lat[k[fl]], ds.lon[k[fl]]
			}
		case fieldSport:
			r.Sport = ds.store.SportDict[k[fl]]
		case fieldMedal:
			r.Medal = models.MedalTiers[k[fl]].String()
		}
	}
	return r
}
