package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"ledgerdesk/internal/caching"
	"ledgerdesk/internal/common"
	"ledgerdesk/internal/ledger"
	"ledgerdesk/internal/models"
)

// entityListTTL bounds staleness of cached backend name lists. Commands
// that create entities invalidate the list for their kind immediately.
const entityListTTL = 10 * time.Minute

// minConfidence is the floor below which a fuzzy match is treated as no
// match at all.
const minConfidence = 0.7

// ResolverService turns human-typed entity names into exact backend
// records. It never guesses silently: zero matches and ambiguous matches
// are both errors the caller must resolve.
type ResolverService interface {
	Resolve(ctx context.Context, kind ledger.EntityKind, name string) (models.EntityRef, error)
	Candidates(ctx context.Context, kind ledger.EntityKind, name string) ([]models.EntityRef, error)
	Invalidate(ctx context.Context, kind ledger.EntityKind)
}

type resolverService struct {
	backend ledger.Backend
	cache   caching.CacheService
}

func NewResolverService(backend ledger.Backend, cache caching.CacheService) ResolverService {
	return &resolverService{backend: backend, cache: cache}
}

func (s *resolverService) entityList(ctx context.Context, kind ledger.EntityKind) ([]models.EntityRef, error) {
	if s.cache != nil {
		refs, err := s.cache.GetEntityList(ctx, string(kind))
		if err != nil {
			log.Printf("WARN: entity cache read failed for %s: %v", kind, err)
		} else if refs != nil {
			return refs, nil
		}
	}

	refs, err := s.backend.FindEntity(ctx, kind, "")
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetEntityList(ctx, string(kind), refs, entityListTTL); err != nil {
			log.Printf("WARN: entity cache write failed for %s: %v", kind, err)
		}
	}
	return refs, nil
}

// scored pairs a candidate with its match confidence.
type scored struct {
	ref   models.EntityRef
	score float64
}

func (s *resolverService) Resolve(ctx context.Context, kind ledger.EntityKind, name string) (models.EntityRef, error) {
	if strings.TrimSpace(name) == "" {
		return models.EntityRef{}, common.FieldError(common.ErrMissingParameter, "name", "entity name is required")
	}

	refs, err := s.entityList(ctx, kind)
	if err != nil {
		return models.EntityRef{}, err
	}

	query := common.NormalizePayee(name)

	// Exact normalized match wins outright, even when other names score
	// above the floor.
	var exact []models.EntityRef
	for _, ref := range refs {
		if common.NormalizePayee(ref.Name) == query {
			exact = append(exact, ref)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	if len(exact) > 1 {
		return models.EntityRef{}, ambiguous(kind, name, exact)
	}

	var matches []scored
	for _, ref := range refs {
		if sc := nameSimilarity(query, common.NormalizePayee(ref.Name)); sc >= minConfidence {
			matches = append(matches, scored{ref: ref, score: sc})
		}
	}
	if len(matches) == 0 {
		return models.EntityRef{}, common.NewError(common.ErrEntityNotFound, "%s %q not found", strings.ToLower(string(kind)), name)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	// A clear winner needs meaningful separation from the runner-up;
	// anything closer is ambiguity the caller has to settle.
	if len(matches) == 1 || matches[0].score-matches[1].score >= 0.1 {
		return matches[0].ref, nil
	}

	top := make([]models.EntityRef, 0, len(matches))
	for _, m := range matches {
		top = append(top, m.ref)
	}
	return models.EntityRef{}, ambiguous(kind, name, top)
}

func (s *resolverService) Candidates(ctx context.Context, kind ledger.EntityKind, name string) ([]models.EntityRef, error) {
	refs, err := s.entityList(ctx, kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return refs, nil
	}

	query := common.NormalizePayee(name)
	var out []models.EntityRef
	for _, ref := range refs {
		if strings.Contains(common.NormalizePayee(ref.Name), query) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (s *resolverService) Invalidate(ctx context.Context, kind ledger.EntityKind) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateEntityList(ctx, string(kind)); err != nil {
		log.Printf("WARN: entity cache invalidation failed for %s: %v", kind, err)
	}
}

func ambiguous(kind ledger.EntityKind, name string, refs []models.EntityRef) *common.Error {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	err := common.NewError(common.ErrAmbiguousEntity, "%s %q matches %d records", strings.ToLower(string(kind)), name, len(refs))
	err.Candidates = names
	return err
}

// nameSimilarity combines substring containment with an edit-distance
// ratio. Containment of a 4+ character query counts as a strong match
// ("home depot" should find "The Home Depot #1234").
func nameSimilarity(query, candidate string) float64 {
	if query == candidate {
		return 1.0
	}
	ratio := editRatio(query, candidate)
	if len(query) >= 4 && strings.Contains(candidate, query) {
		if ratio < 0.85 {
			ratio = 0.85
		}
	}
	// First token match covers "jaciel" vs "jaciel hernandez".
	if tokens := strings.Fields(candidate); len(tokens) > 0 && tokens[0] == query {
		if ratio < 0.8 {
			ratio = 0.8
		}
	}
	return ratio
}

// editRatio is 1 - normalized Levenshtein distance.
func editRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1.0 - float64(prev[len(rb)])/float64(longest)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
