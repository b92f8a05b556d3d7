package compare

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/domain"
)

func genResults() gopter.Gen {
	return gen.MapOf(gen.Identifier(), gen.Float64Range(-1e6, 1e6)).Map(func(m map[string]float64) map[string]domain.Value {
		out := make(map[string]domain.Value, len(m))
		i := 0
		for k, v := range m {
			switch i % 3 {
			case 0:
				out[k] = domain.Number(v)
			case 1:
				out[k] = domain.Array(domain.Number(v), domain.Bool(v > 0))
			default:
				out[k] = domain.Object(map[string]domain.Value{"v": domain.Number(v), "s": domain.String(k)})
			}
			i++
		}
		return out
	})
}

func TestCompare_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	engine := NewEngine(config.ComparisonPolicy{})

	properties.Property("identical content scores 1.0 and passes", prop.ForAll(
		func(results map[string]domain.Value) bool {
			data := &domain.ElementData{Testcase: "case", Results: results}
			res := engine.Compare(data, data)
			return res.Score == 1.0 && res.Verdict == domain.VerdictPass && len(res.Mismatches) == 0
		},
		genResults(),
	))

	properties.Property("score stays within [0,1]", prop.ForAll(
		func(a, b map[string]domain.Value) bool {
			res := engine.Compare(&domain.ElementData{Testcase: "c", Results: a}, &domain.ElementData{Testcase: "c", Results: b})
			return res.Score >= 0 && res.Score <= 1
		},
		genResults(), genResults(),
	))

	properties.Property("compare is deterministic", prop.ForAll(
		func(a, b map[string]domain.Value) bool {
			x := &domain.ElementData{Testcase: "c", Results: a}
			y := &domain.ElementData{Testcase: "c", Results: b}
			return reflect.DeepEqual(engine.Compare(x, y), engine.Compare(x, y))
		},
		genResults(), genResults(),
	))

	properties.Property("an extra key breaks the pass verdict", prop.ForAll(
		func(results map[string]domain.Value) bool {
			extended := make(map[string]domain.Value, len(results)+1)
			for k, v := range results {
				extended[k] = v
			}
			extended["~extra"] = domain.Bool(true)
			res := engine.Compare(&domain.ElementData{Testcase: "c", Results: extended}, &domain.ElementData{Testcase: "c", Results: results})
			return res.Verdict == domain.VerdictFail && res.Score < 1
		},
		genResults(),
	))

	properties.TestingRun(t)
}
