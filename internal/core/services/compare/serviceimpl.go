package compare

import (
	"fmt"
	"math"
	"sort"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/domain"
)

var _ IComparisonEngine = (*Engine)(nil)

// percentThreshold is the largest relative change still reported in percent
const percentThreshold = 0.2

type Engine struct {
	policy config.ComparisonPolicy
}

func NewEngine(policy config.ComparisonPolicy) *Engine {
	return &Engine{policy: policy}
}

func (e *Engine) Compare(submitted, baseline *domain.ElementData) *domain.ComparisonResult {
	result := &domain.ComparisonResult{
		Testcase:   submitted.Testcase,
		Mismatches: []domain.Mismatch{},
	}
	src := submitted.Keys()

	if baseline == nil {
		result.Verdict = domain.VerdictNoBaseline
		result.KeyCount = len(src)
		result.Metrics = diffMetrics(submitted.Metrics, nil)
		return result
	}
	dst := baseline.Keys()

	for _, key := range unionKeys(src, dst) {
		path := qualify(submitted.Testcase, key)
		s, inSrc := src[key]
		b, inDst := dst[key]
		result.KeyCount++

		switch {
		case inSrc && !inDst:
			v := s
			result.Mismatches = append(result.Mismatches, domain.Mismatch{Path: path, Kind: domain.MismatchNew, Submitted: &v})
		case !inSrc && inDst:
			v := b
			result.Mismatches = append(result.Mismatches, domain.Mismatch{Path: path, Kind: domain.MismatchMissing, Baseline: &v})
		default:
			c := cmp{tol: e.policy.ToleranceFor(key)}
			if c.value(path, s, b) {
				result.MatchCount++
			}
			result.Mismatches = append(result.Mismatches, c.out...)
		}
	}

	if result.KeyCount == 0 {
		result.Score = 1
	} else {
		result.Score = float64(result.MatchCount) / float64(result.KeyCount)
	}
	result.Matches = result.Score >= 1
	if result.Matches {
		result.Verdict = domain.VerdictPass
	} else {
		result.Verdict = domain.VerdictFail
	}
	result.Metrics = diffMetrics(submitted.Metrics, baseline.Metrics)
	return result
}

// cmp collects the mismatches of one top-level key
type cmp struct {
	tol config.Tolerance
	out []domain.Mismatch
}

func (c *cmp) mismatch(path string, s, b domain.Value, score float64, desc ...string) {
	sv, bv := s, b
	c.out = append(c.out, domain.Mismatch{
		Path:      path,
		Kind:      domain.MismatchChanged,
		Submitted: &sv,
		Baseline:  &bv,
		Score:     score,
		Desc:      desc,
	})
}

// value reports whether s matches b, recording mismatches below path
func (c *cmp) value(path string, s, b domain.Value) bool {
	if s.Kind != b.Kind {
		c.mismatch(path, s, b, 0, "result types are different")
		return false
	}

	switch s.Kind {
	case domain.KindNumber:
		if c.withinTolerance(s.Number, b.Number) {
			return true
		}
		c.mismatch(path, s, b, 0, describeNumber(s.Number, b.Number))
		return false
	case domain.KindArray:
		return c.array(path, s, b)
	case domain.KindObject:
		return c.object(path, s, b)
	default:
		if s.Equal(b) {
			return true
		}
		c.mismatch(path, s, b, 0)
		return false
	}
}

func (c *cmp) array(path string, s, b domain.Value) bool {
	common := len(s.Items)
	if len(b.Items) < common {
		common = len(b.Items)
	}
	longest := len(s.Items)
	if len(b.Items) > longest {
		longest = len(b.Items)
	}

	matched := 0
	var desc []string
	for i := 0; i < common; i++ {
		child := cmp{tol: c.tol}
		if child.value(fmt.Sprintf("%s[%d]", path, i), s.Items[i], b.Items[i]) {
			matched++
			continue
		}
		for _, m := range child.out {
			if m.Path == fmt.Sprintf("%s[%d]", path, i) {
				for _, d := range m.Desc {
					desc = append(desc, fmt.Sprintf("[%d]:%s", i, d))
				}
			}
		}
		c.out = append(c.out, child.out...)
	}

	if len(s.Items) == len(b.Items) && matched == common {
		return true
	}

	switch diff := len(s.Items) - len(b.Items); {
	case diff > 0:
		desc = append([]string{fmt.Sprintf("array size grown by %d elements", diff)}, desc...)
	case diff < 0:
		desc = append([]string{fmt.Sprintf("array size shrunk by %d elements", -diff)}, desc...)
	}
	score := float64(matched) / float64(longest)
	c.mismatch(path, s, b, score, desc...)
	return false
}

func (c *cmp) object(path string, s, b domain.Value) bool {
	ok := true
	for _, name := range unionKeys(s.Fields, b.Fields) {
		child := path + "." + name
		sv, inSrc := s.Fields[name]
		bv, inDst := b.Fields[name]
		switch {
		case inSrc && !inDst:
			c.out = append(c.out, domain.Mismatch{Path: child, Kind: domain.MismatchNew, Submitted: &sv})
			ok = false
		case !inSrc && inDst:
			c.out = append(c.out, domain.Mismatch{Path: child, Kind: domain.MismatchMissing, Baseline: &bv})
			ok = false
		default:
			if !c.value(child, sv, bv) {
				ok = false
			}
		}
	}
	return ok
}

func (c *cmp) withinTolerance(s, b float64) bool {
	if s == b {
		return true
	}
	diff := math.Abs(s - b)
	if diff <= c.tol.Absolute {
		return true
	}
	return c.tol.Relative > 0 && b != 0 && diff/math.Abs(b) <= c.tol.Relative
}

func describeNumber(s, b float64) string {
	diff := s - b
	direction := "larger"
	if diff < 0 {
		direction = "smaller"
		diff = -diff
	}
	if b != 0 {
		if ratio := diff / math.Abs(b); ratio <= percentThreshold {
			return fmt.Sprintf("value is %s by %f percent", direction, ratio*100)
		}
	}
	return fmt.Sprintf("value is %s by %f", direction, diff)
}

func diffMetrics(src, dst map[string]float64) []domain.MetricDiff {
	if len(src) == 0 && len(dst) == 0 {
		return nil
	}
	keys := make(map[string]struct{}, len(src)+len(dst))
	for k := range src {
		keys[k] = struct{}{}
	}
	for k := range dst {
		keys[k] = struct{}{}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]domain.MetricDiff, 0, len(names))
	for _, k := range names {
		d := domain.MetricDiff{Key: k}
		if v, ok := src[k]; ok {
			v := v
			d.Submitted = &v
		}
		if v, ok := dst[k]; ok {
			v := v
			d.Baseline = &v
		}
		out = append(out, d)
	}
	return out
}

func unionKeys(a, b map[string]domain.Value) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for _, m := range []map[string]domain.Value{a, b} {
		for k := range m {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func qualify(testcase, key string) string {
	if testcase == "" {
		return key
	}
	return testcase + "." + key
}
