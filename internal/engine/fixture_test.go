package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

type coord struct{ lat, lon float64 }

var (
	sweden = coord{60.1, 18.6}
	norway = coord{60.5, 8.5}
	usa    = coord{37.1, -95.7}
)

func ev(year int, season models.Season, country, sport string, medal models.Medal, who string, at coord) models.Event {
	return models.Event{
		Year: year, Season: season, Country: country, Sport: sport,
		Medal: medal, Participant: who, Latitude: at.lat, Longitude: at.lon,
	}
}

// testEvents is a small games history:
//
//	Sweden  2016 Summer Sailing  Gold s1, Silver s2; 2012 Sailing s1 (none); 2014 Winter Biathlon s3 (none)
//	Norway  2014 Winter Biathlon Gold n1, Gold n2, Bronze n1; 2016 Sailing n3 (none)
//	USA     2016 Summer Swimming Gold u1 (x2), Silver u2; 2012 Swimming Gold u1; 2012 Sailing Bronze u3
func testEvents() []models.Event {
	const summer, winter = models.SeasonSummer, models.SeasonWinter
	return []models.Event{
		ev(2016, summer, "Sweden", "Sailing", models.MedalGold, "s1", sweden),
		ev(2016, summer, "Sweden", "Sailing", models.MedalSilver, "s2", sweden),
		ev(2012, summer, "Sweden", "Sailing", models.MedalNone, "s1", sweden),
		ev(2014, winter, "Sweden", "Biathlon", models.MedalNone, "s3", sweden),
		ev(2014, winter, "Norway", "Biathlon", models.MedalGold, "n1", norway),
		ev(2014, winter, "Norway", "Biathlon", models.MedalGold, "n2", norway),
		ev(2014, winter, "Norway", "Biathlon", models.MedalBronze, "n1", norway),
		ev(2016, summer, "Norway", "Sailing", models.MedalNone, "n3", norway),
		ev(2016, summer, "USA", "Swimming", models.MedalGold, "u1", usa),
		ev(2016, summer, "USA", "Swimming", models.MedalGold, "u1", usa),
		ev(2016, summer, "USA", "Swimming", models.MedalSilver, "u2", usa),
		ev(2012, summer, "USA", "Swimming", models.MedalGold, "u1", usa),
		ev(2012, summer, "USA", "Sailing", models.MedalBronze, "u3", usa),
	}
}

func testGender() []models.GenderRatio {
	return []models.GenderRatio{
		{Year: 2016, Country: "Sweden", Count: 100, Ratio: 0.45, Latitude: sweden.lat, Longitude: sweden.lon},
		{Year: 2014, Country: "Norway", Count: 80, Ratio: 0.4, Latitude: norway.lat, Longitude: norway.lon},
		{Year: 2016, Country: "Norway", Count: 90, Ratio: 0.5, Latitude: norway.lat, Longitude: norway.lon},
	}
}

func newTestStore(t *testing.T) *ColumnStore {
	t.Helper()
	store, err := NewColumnStore(testEvents())
	require.NoError(t, err)
	return store
}

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset(context.Background(), newTestStore(t), testGender(), DatasetOptions{
		TopN:         10,
		FocusCountry: "Sweden",
		Workers:      3,
	})
	require.NoError(t, err)
	return ds
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(newTestDataset(t), Options{CacheCapacity: 16})
}

// writeCSV writes content to a temp file and returns its path.
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
