// Package dreambook implements the Vietnamese folk dream-number lookup
// (Sổ Mơ Dân Gian). A static dataset maps 2-digit codes to dream keywords;
// lookup scans free text for the most specific keyword and expands the base
// codes with their "shadow" variants (+40 and +80 with wrap-around).
package dreambook

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nhatai1995/DreamSight-AI/internal/logging"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed dreambook.yaml
var defaultDataset []byte

// Match is the result of a successful lookup.
type Match struct {
	// Codes is the expanded code set joined with " - ", sorted numerically,
	// e.g. "11 - 51 - 91" for keyword "chó".
	Codes string

	// Keyword is the matched dataset keyword (lowercased).
	Keyword string
}

// entry pairs a keyword with its base codes. Entries are kept in a slice so
// lookup iteration order is stable.
type entry struct {
	keyword string
	codes   []string
}

// Index is the process-wide keyword index. Read-only after construction and
// safe for concurrent use without locking.
type Index struct {
	entries []entry
}

// NewIndex builds an index from raw YAML mapping codes to keyword lists:
//
//	"11": ["chó", "chó đen"]
//	"32": ["rắn"]
//
// A malformed dataset yields an empty index and an error; callers are expected
// to log and continue, never to abort startup.
func NewIndex(data []byte) (*Index, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &Index{}, fmt.Errorf("failed to parse dreambook dataset: %w", err)
	}

	// Reverse index: keyword -> codes, preserving one entry per keyword.
	byKeyword := make(map[string][]string)
	for code, keywords := range raw {
		code = strings.TrimSpace(code)
		if _, err := strconv.Atoi(code); err != nil || len(code) != 2 {
			return &Index{}, fmt.Errorf("invalid dreambook code %q", code)
		}
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if !contains(byKeyword[kw], code) {
				byKeyword[kw] = append(byKeyword[kw], code)
			}
		}
	}

	idx := &Index{entries: make([]entry, 0, len(byKeyword))}
	for kw, codes := range byKeyword {
		sort.Strings(codes)
		idx.entries = append(idx.entries, entry{keyword: kw, codes: codes})
	}
	// Stable order: longest keyword first, then lexicographic. Lookup can then
	// take the first containment hit and the tie-break stays deterministic.
	sort.Slice(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if len(a.keyword) != len(b.keyword) {
			return len(a.keyword) > len(b.keyword)
		}
		return a.keyword < b.keyword
	})
	return idx, nil
}

// LoadDefault builds the index from the embedded dataset. Dataset problems are
// logged and produce an empty index; startup continues.
func LoadDefault() *Index {
	idx, err := NewIndex(defaultDataset)
	if err != nil {
		logging.Named(logging.CategoryDreambook).Warn("could not load embedded dreambook", zap.Error(err))
		return &Index{}
	}
	logging.Named(logging.CategoryDreambook).Info("dreambook loaded",
		zap.Int("keywords", len(idx.entries)))
	return idx
}

// Len returns the number of indexed keywords.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Lookup scans the dream text for indexed keywords using substring
// containment. Partial matches are intentional: Vietnamese word segmentation
// is ambiguous, and longer keywords winning is how specificity is expressed
// ("cá trắng" beats "cá"). Returns ok=false when nothing matches.
func (idx *Index) Lookup(text string) (Match, bool) {
	if len(idx.entries) == 0 {
		return Match{}, false
	}

	lower := strings.ToLower(text)
	for _, e := range idx.entries {
		if strings.Contains(lower, e.keyword) {
			return Match{
				Codes:   ExpandShadow(e.codes),
				Keyword: e.keyword,
			}, true
		}
	}
	return Match{}, false
}

// ExpandShadow applies the Tam Hợp / Bóng Số expansion to a set of base
// codes: each base gains a +40 variant when it stays within 00-99, and a +80
// variant that wraps past 99 (145 -> 45) only while base+80 <= 139. The
// asymmetry with +40 is deliberate; the folk rule is preserved as-is.
// The union is sorted numerically and joined with " - ".
func ExpandShadow(codes []string) string {
	set := make(map[string]struct{})
	for _, code := range codes {
		set[code] = struct{}{}
		base, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		if s40 := base + 40; s40 <= 99 {
			set[fmt.Sprintf("%02d", s40)] = struct{}{}
		}
		if s80 := base + 80; s80 <= 99 {
			set[fmt.Sprintf("%02d", s80)] = struct{}{}
		} else if s80 <= 139 {
			set[fmt.Sprintf("%02d", s80-100)] = struct{}{}
		}
	}

	all := make([]string, 0, len(set))
	for code := range set {
		all = append(all, code)
	}
	sort.Slice(all, func(i, j int) bool {
		a, _ := strconv.Atoi(all[i])
		b, _ := strconv.Atoi(all[j])
		return a < b
	})
	return strings.Join(all, " - ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
