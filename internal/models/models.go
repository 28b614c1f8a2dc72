package models

import (
	"fmt"
	"strings"
)

// Dimension is one of the four selectable axes.
type Dimension string

const (
	DimYear    Dimension = "year"
	DimSport   Dimension = "sport"
	DimSeason  Dimension = "season"
	DimCountry Dimension = "country"
)

// Dimensions lists the selectable dimensions in display order.
var Dimensions = []Dimension{DimYear, DimSport, DimSeason, DimCountry}

type Season string

const (
	SeasonSummer Season = "Summer"
	SeasonWinter Season = "Winter"
)

func ParseSeason(s string) (Season, bool) {
	switch strings.TrimSpace(s) {
	case "Summer":
		return SeasonSummer, true
	case "Winter":
		return SeasonWinter, true
	}
	return "", false
}

// Medal is the tier of a single event record. MedalNone marks a
// participation without a medal.
type Medal uint8

const (
	MedalNone Medal = iota
	MedalGold
	MedalSilver
	MedalBronze
)

// MedalTiers lists every tier in natural order (podium first).
var MedalTiers = []Medal{MedalGold, MedalSilver, MedalBronze, MedalNone}

func (m Medal) String() string {
	switch m {
	case MedalGold:
		return "Gold"
	case MedalSilver:
		return "Silver"
	case MedalBronze:
		return "Bronze"
	default:
		return "None"
	}
}

// Rank is the position of m in MedalTiers.
func (m Medal) Rank() int {
	switch m {
	case MedalGold:
		return 0
	case MedalSilver:
		return 1
	case MedalBronze:
		return 2
	default:
		return 3
	}
}

// Won reports whether the record carries a medal.
func (m Medal) Won() bool { return m != MedalNone }

// ParseMedal accepts the tier names plus the source file's null markers
// ("", "NA") for MedalNone.
func ParseMedal(s string) (Medal, error) {
	switch strings.TrimSpace(s) {
	case "Gold":
		return MedalGold, nil
	case "Silver":
		return MedalSilver, nil
	case "Bronze":
		return MedalBronze, nil
	case "", "NA", "None":
		return MedalNone, nil
	}
	return MedalNone, fmt.Errorf("unknown medal tier %q", s)
}

// Event is one (athlete, competition-entry) row of the record store.
type Event struct {
	Year        int     `json:"year"`
	Season      Season  `json:"season"`
	Country     string  `json:"country"`
	Sport       string  `json:"sport"`
	Medal       Medal   `json:"medal"`
	Participant string  `json:"participant"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// GenderRatio is one row of the gender-ratio table used by the map view.
type GenderRatio struct {
	Year      int     `json:"year"`
	Country   string  `json:"country"`
	Count     int     `json:"count"`
	Ratio     float64 `json:"ratio"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
