package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
)

// Candidate is a raw hit that survived the hard filters, enriched with a
// match score and the download client family it needs
type Candidate struct {
	providers.RawHit
	Score    int
	Backend  downloaders.Kind
	Priority int // Provider priority, filled by the orchestrator
}

// RejectReason classifies why a hit was filtered out rather than scored
type RejectReason string

const (
	ReasonUnsupportedFormat RejectReason = "unsupported_format"
	ReasonSizeOutOfRange    RejectReason = "size_out_of_range"
	ReasonBelowThreshold    RejectReason = "below_match_threshold"
	ReasonRejectWord        RejectReason = "reject_word"
	ReasonBadURL            RejectReason = "bad_url"
)

// Rejection is the hard-filter outcome of scoring a hit
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected: %s (%s)", r.Reason, r.Detail)
}

// Engine turns raw hits into scored candidates. It is deterministic:
// identical inputs always produce the same outcome.
type Engine struct {
	cfg    config.ScoringConfig
	logger *logrus.Logger
}

// NewEngine creates a scoring engine
func NewEngine(cfg config.ScoringConfig, logger *logrus.Logger) *Engine {
	if cfg.MinScore <= 0 {
		cfg.MinScore = 80
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Score evaluates one hit against a wanted item. It returns a *Rejection
// error when the hit fails a hard filter, otherwise a scored candidate.
func (e *Engine) Score(item *models.WantedItem, hit providers.RawHit) (Candidate, error) {
	if rej := e.checkURL(hit); rej != nil {
		return Candidate{}, rej
	}

	hitNorm := Normalize(hit.Title)
	hitTokens := strings.Fields(hitNorm)

	hitTypes := e.detectTypes(hitTokens, hit.URL)
	if rej := e.checkTypes(item, hitTypes); rej != nil {
		return Candidate{}, rej
	}

	if rej := e.checkSize(item, hit); rej != nil {
		return Candidate{}, rej
	}

	titleTokens := Tokens(item.Title)
	authorTokens := Tokens(item.Author)

	if word := e.rejectWordIn(hitTokens, titleTokens, authorTokens); word != "" {
		return Candidate{}, &Rejection{Reason: ReasonRejectWord, Detail: word}
	}

	sim := e.similarity(item, hitNorm, hitTokens)
	if sim < e.cfg.MinScore {
		return Candidate{}, &Rejection{
			Reason: ReasonBelowThreshold,
			Detail: fmt.Sprintf("%d%% < %d%%", sim, e.cfg.MinScore),
		}
	}

	score := sim
	score -= e.leftoverPenalty(hitTokens, titleTokens, authorTokens, item.Category)
	score += e.typeBonus(item, hitTypes)

	return Candidate{
		RawHit:  hit,
		Score:   score,
		Backend: downloaders.FamilyFor(hit.Kind),
	}, nil
}

// Rank sorts candidates best first: score, then seeders, then size, then
// configured provider priority, with a title tiebreak so the order is
// fully reproducible.
func Rank(candidates []Candidate) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].Seeders != sorted[j].Seeders {
			return sorted[i].Seeders > sorted[j].Seeders
		}
		if sorted[i].SizeBytes != sorted[j].SizeBytes {
			return sorted[i].SizeBytes > sorted[j].SizeBytes
		}
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Title < sorted[j].Title
	})

	return sorted
}

// similarity blends token overlap with edit distance between the wanted
// (title + author) and the hit title. An exact substring containment of
// the wanted title outranks any fuzzy result.
func (e *Engine) similarity(item *models.WantedItem, hitNorm string, hitTokens []string) int {
	wantedNorm := Normalize(item.Title + " " + item.Author)
	titleNorm := Normalize(item.Title)

	if titleNorm == "" {
		return 0
	}

	if strings.Contains(hitNorm, titleNorm) {
		return 100
	}

	sim := tokenSetRatio(strings.Fields(wantedNorm), hitTokens)
	if lev := levenshteinRatio(wantedNorm, hitNorm); lev > sim {
		sim = lev
	}

	// A weak author match halves the confidence in a good title match
	if item.Author != "" {
		authorMatch := tokenSetRatio(Tokens(item.Author), hitTokens)
		if authorMatch < e.cfg.MinScore {
			sim = (sim + authorMatch) / 2
		}
	}

	return sim
}

func levenshteinRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	if dist >= longest {
		return 0
	}
	return (longest - dist) * 100 / longest
}

func (e *Engine) checkURL(hit providers.RawHit) *Rejection {
	switch hit.Kind {
	case providers.KindIRC:
		if !strings.HasPrefix(hit.URL, "!") {
			return &Rejection{Reason: ReasonBadURL, Detail: "invalid pack command"}
		}
	case providers.KindMagnet:
		if !strings.HasPrefix(hit.URL, "magnet:") {
			return &Rejection{Reason: ReasonBadURL, Detail: "invalid magnet link"}
		}
	default:
		if !strings.HasPrefix(hit.URL, "http://") && !strings.HasPrefix(hit.URL, "https://") {
			return &Rejection{Reason: ReasonBadURL, Detail: "invalid URL scheme"}
		}
	}
	return nil
}

// detectTypes finds recognizable file type tokens in the hit title or URL
func (e *Engine) detectTypes(hitTokens []string, url string) []string {
	all := make(map[string]struct{})
	for _, list := range [][]string{e.cfg.EBookTypes, e.cfg.AudiobookTypes, e.cfg.MagazineTypes} {
		for _, t := range list {
			all[t] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var found []string
	for _, tok := range hitTokens {
		if _, ok := all[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		found = append(found, tok)
	}

	lowered := strings.ToLower(url)
	for t := range all {
		if _, dup := seen[t]; dup {
			continue
		}
		if strings.HasSuffix(lowered, "."+t) {
			seen[t] = struct{}{}
			found = append(found, t)
		}
	}

	sort.Strings(found)
	return found
}

// checkTypes rejects hits whose recognizable file type cannot serve the
// item's category. A hit with no recognizable type is let through; the
// score decides its fate.
func (e *Engine) checkTypes(item *models.WantedItem, hitTypes []string) *Rejection {
	if len(hitTypes) == 0 {
		return nil
	}

	supported := tokenSet(e.cfg.TypesForCategory(item.Category))
	for _, t := range hitTypes {
		if _, ok := supported[t]; ok {
			return nil
		}
	}

	return &Rejection{
		Reason: ReasonUnsupportedFormat,
		Detail: fmt.Sprintf("%v unsupported for %s", hitTypes, item.Category),
	}
}

func (e *Engine) checkSize(item *models.WantedItem, hit providers.RawHit) *Rejection {
	if hit.SizeBytes <= 0 {
		return nil // Size unknown; many feeds omit it
	}

	min, max := e.cfg.SizeBoundsForCategory(item.Category)
	if min > 0 && hit.SizeBytes < min {
		return &Rejection{Reason: ReasonSizeOutOfRange, Detail: fmt.Sprintf("%d bytes too small", hit.SizeBytes)}
	}
	if max > 0 && hit.SizeBytes > max {
		return &Rejection{Reason: ReasonSizeOutOfRange, Detail: fmt.Sprintf("%d bytes too large", hit.SizeBytes)}
	}
	return nil
}

// rejectWordIn returns the first configured reject word present in the
// hit but absent from the wanted title and author
func (e *Engine) rejectWordIn(hitTokens, titleTokens, authorTokens []string) string {
	if len(e.cfg.RejectWords) == 0 {
		return ""
	}

	hits := tokenSet(hitTokens)
	wanted := tokenSet(append(append([]string{}, titleTokens...), authorTokens...))

	for _, word := range e.cfg.RejectWords {
		if _, ok := hits[word]; !ok {
			continue
		}
		if _, ok := wanted[word]; ok {
			continue
		}
		return word
	}
	return ""
}

// leftoverPenalty loses a point per hit token that matches neither the
// wanted title, the author, nor a known file type, so the closest release
// name wins among equals
func (e *Engine) leftoverPenalty(hitTokens, titleTokens, authorTokens []string, cat models.Category) int {
	wanted := tokenSet(append(append([]string{}, titleTokens...), authorTokens...))
	types := tokenSet(e.cfg.TypesForCategory(cat))

	penalty := 0
	for _, tok := range hitTokens {
		if _, ok := wanted[tok]; ok {
			continue
		}
		if _, ok := types[tok]; ok {
			continue
		}
		penalty++
	}
	return penalty
}

// typeBonus rewards hits carrying a preferred file type, weighted so
// types nearer the front of the preference list earn more
func (e *Engine) typeBonus(item *models.WantedItem, hitTypes []string) int {
	prefs := item.WantedTypes
	if len(prefs) == 0 {
		prefs = e.cfg.TypesForCategory(item.Category)
	}

	bonus := 0
	for _, t := range hitTypes {
		for i, pref := range prefs {
			if t == pref {
				bonus += len(prefs) - i
			}
		}
	}
	return bonus
}
