package dictionary

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/models"
)

// memWordStore keeps word rows in memory for service tests.
type memWordStore struct {
	words map[string][]*models.Word
}

func newMemWordStore() *memWordStore {
	return &memWordStore{words: make(map[string][]*models.Word)}
}

func (m *memWordStore) SaveWords(ctx context.Context, words []*models.Word) error {
	for _, w := range words {
		m.words[w.LandID] = append(m.words[w.LandID], w)
	}
	return nil
}

func (m *memWordStore) GetWordsByLand(ctx context.Context, landID string) ([]*models.Word, error) {
	return m.words[landID], nil
}

func (m *memWordStore) DeleteWordsByLand(ctx context.Context, landID string) error {
	delete(m.words, landID)
	return nil
}

type memLandStore struct {
	lands map[string]*models.Land
}

func newMemLandStore() *memLandStore {
	return &memLandStore{lands: make(map[string]*models.Land)}
}

func (m *memLandStore) SaveLand(ctx context.Context, land *models.Land) error {
	m.lands[land.ID] = land
	return nil
}

func (m *memLandStore) GetLand(ctx context.Context, landID string) (*models.Land, error) {
	return m.lands[landID], nil
}

func (m *memLandStore) GetLandByName(ctx context.Context, owner, name string) (*models.Land, error) {
	for _, land := range m.lands {
		if land.Owner == owner && land.Name == name {
			return land, nil
		}
	}
	return nil, nil
}

func (m *memLandStore) ListLands(ctx context.Context, owner string) ([]*models.Land, error) {
	var out []*models.Land
	for _, land := range m.lands {
		if owner == "" || land.Owner == owner {
			out = append(out, land)
		}
	}
	return out, nil
}

func (m *memLandStore) DeleteLand(ctx context.Context, landID string) error {
	delete(m.lands, landID)
	return nil
}

func newTestService() (*Service, *memWordStore, *memLandStore) {
	words := newMemWordStore()
	lands := newMemLandStore()
	return NewService(words, lands, arbor.NewLogger()), words, lands
}

func TestRebuildPersistsWordsAndFingerprint(t *testing.T) {
	svc, words, landStore := newTestService()
	ctx := context.Background()

	land := models.NewLand("energy", "renewable energy research", "tester", []string{"en"})
	land.Keywords = []string{"renewable energy", "solar panels"}
	if err := landStore.SaveLand(ctx, land); err != nil {
		t.Fatal(err)
	}

	dict, err := svc.Rebuild(ctx, land)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if dict.Empty() {
		t.Fatal("dictionary empty after rebuild")
	}
	if dict.Fingerprint != land.KeywordFingerprint() {
		t.Error("dictionary fingerprint does not match keyword fingerprint")
	}
	if land.DictionaryFingerprint != dict.Fingerprint {
		t.Error("land fingerprint not recorded")
	}

	stored, err := words.GetWordsByLand(ctx, land.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != dict.Size() {
		t.Errorf("stored %d words, dictionary has %d lemmas", len(stored), dict.Size())
	}
}

func TestGetCachesUntilKeywordsChange(t *testing.T) {
	svc, _, landStore := newTestService()
	ctx := context.Background()

	land := models.NewLand("energy", "", "tester", []string{"en"})
	land.Keywords = []string{"wind turbine"}
	if err := landStore.SaveLand(ctx, land); err != nil {
		t.Fatal(err)
	}

	first, err := svc.Get(ctx, land)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Get(ctx, land)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("cached dictionary not reused for unchanged keywords")
	}

	land.Keywords = append(land.Keywords, "offshore wind")
	third, err := svc.Get(ctx, land)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("keyword change did not trigger a rebuild")
	}
	if !third.Has(NormalizeToken("offshore", "en")) {
		t.Error("rebuilt dictionary missing new keyword lemma")
	}
}

func TestFingerprintOrderAndCaseInsensitive(t *testing.T) {
	a := models.NewLand("a", "", "tester", nil)
	a.Keywords = []string{"Solar", "wind"}
	b := models.NewLand("b", "", "tester", nil)
	b.Keywords = []string{"wind", "solar"}

	if a.KeywordFingerprint() != b.KeywordFingerprint() {
		t.Error("fingerprint should be independent of keyword order and case")
	}
}

func TestReverseMapping(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	land := models.NewLand("energy", "", "tester", []string{"en"})
	land.Keywords = []string{"solar panels"}

	dict, err := svc.Rebuild(ctx, land)
	if err != nil {
		t.Fatal(err)
	}
	lemma := NormalizeToken("panels", "en")
	keywords := dict.KeywordsFor(lemma)
	if len(keywords) != 1 || keywords[0] != "solar panels" {
		t.Errorf("KeywordsFor(%q) = %v, want [solar panels]", lemma, keywords)
	}
}
