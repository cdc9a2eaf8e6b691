package dictionary

import (
	"context"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// Dictionary is the per-land lemma index: every normalized token of every
// keyword, with a reverse map back to the keywords that produced it.
// Instances are immutable once built, so readers never need a lock.
type Dictionary struct {
	LandID      string
	Fingerprint string
	lemmas      map[string]struct{}
	reverse     map[string][]string
	languages   []string
}

// Has reports whether a lemma belongs to the dictionary.
func (d *Dictionary) Has(lemma string) bool {
	_, ok := d.lemmas[lemma]
	return ok
}

// Size returns the lemma count.
func (d *Dictionary) Size() int {
	return len(d.lemmas)
}

// Empty reports whether the land has no usable keywords. With an empty
// dictionary every relevance score is zero.
func (d *Dictionary) Empty() bool {
	return len(d.lemmas) == 0
}

// KeywordsFor returns the original keywords that produced a lemma.
func (d *Dictionary) KeywordsFor(lemma string) []string {
	return d.reverse[lemma]
}

// Lemmas returns the sorted lemma list.
func (d *Dictionary) Lemmas() []string {
	out := make([]string, 0, len(d.lemmas))
	for lemma := range d.lemmas {
		out = append(out, lemma)
	}
	sort.Strings(out)
	return out
}

// Service builds and caches per-land dictionaries. The cache is
// copy-on-write: a keyword mutation changes the land's fingerprint, the
// next Get sees the mismatch and builds a fresh instance while concurrent
// readers keep the old one.
type Service struct {
	words  interfaces.WordStorage
	lands  interfaces.LandStorage
	logger arbor.ILogger

	mu    sync.RWMutex
	cache map[string]*Dictionary
}

// NewService creates the dictionary service.
func NewService(words interfaces.WordStorage, lands interfaces.LandStorage, logger arbor.ILogger) *Service {
	return &Service{
		words:  words,
		lands:  lands,
		logger: logger,
		cache:  make(map[string]*Dictionary),
	}
}

// Get returns the dictionary for a land, building it lazily. The cached
// instance is reused while the keyword fingerprint matches.
func (s *Service) Get(ctx context.Context, land *models.Land) (*Dictionary, error) {
	fingerprint := land.KeywordFingerprint()

	s.mu.RLock()
	cached, ok := s.cache[land.ID]
	s.mu.RUnlock()
	if ok && cached.Fingerprint == fingerprint {
		return cached, nil
	}

	return s.Rebuild(ctx, land)
}

// Rebuild constructs the dictionary from the land's current keywords,
// persists the word rows and swaps the cache entry.
func (s *Service) Rebuild(ctx context.Context, land *models.Land) (*Dictionary, error) {
	dict := build(land)

	if err := s.persist(ctx, land, dict); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[land.ID] = dict
	s.mu.Unlock()

	s.logger.Debug().
		Str("land_id", land.ID).
		Int("lemmas", dict.Size()).
		Str("fingerprint", dict.Fingerprint).
		Msg("Dictionary rebuilt")
	return dict, nil
}

// Invalidate drops the cached dictionary for a land.
func (s *Service) Invalidate(landID string) {
	s.mu.Lock()
	delete(s.cache, landID)
	s.mu.Unlock()
}

// Build constructs an in-memory dictionary from the land's current keywords
// without persisting anything.
func Build(land *models.Land) *Dictionary {
	return build(land)
}

// build normalizes every keyword into lemmas across the land's languages.
func build(land *models.Land) *Dictionary {
	dict := &Dictionary{
		LandID:      land.ID,
		Fingerprint: land.KeywordFingerprint(),
		lemmas:      make(map[string]struct{}),
		reverse:     make(map[string][]string),
		languages:   land.Languages,
	}

	languages := land.Languages
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	for _, keyword := range land.Keywords {
		for _, language := range languages {
			for _, lemma := range Tokenize(keyword, language) {
				if _, ok := dict.lemmas[lemma]; !ok {
					dict.lemmas[lemma] = struct{}{}
				}
				if !containsString(dict.reverse[lemma], keyword) {
					dict.reverse[lemma] = append(dict.reverse[lemma], keyword)
				}
			}
		}
	}
	return dict
}

// persist replaces the land's word rows with the freshly built set and
// records the fingerprint on the land.
func (s *Service) persist(ctx context.Context, land *models.Land, dict *Dictionary) error {
	if err := s.words.DeleteWordsByLand(ctx, land.ID); err != nil {
		return err
	}

	languages := land.Languages
	if len(languages) == 0 {
		languages = []string{"en"}
	}
	primary := languages[0]

	words := make([]*models.Word, 0, dict.Size())
	for lemma, keywords := range dict.reverse {
		words = append(words, models.NewWord(land.ID, lemma, primary, keywords))
	}
	if err := s.words.SaveWords(ctx, words); err != nil {
		return err
	}

	if land.DictionaryFingerprint != dict.Fingerprint {
		land.DictionaryFingerprint = dict.Fingerprint
		land.Touch()
		if err := s.lands.SaveLand(ctx, land); err != nil {
			return err
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
