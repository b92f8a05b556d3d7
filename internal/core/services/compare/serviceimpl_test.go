package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/config"
	"gitlab.com/baseline-2025.net/internal/domain"
)

func element(testcase string, results map[string]domain.Value) *domain.ElementData {
	return &domain.ElementData{Testcase: testcase, Results: results}
}

func TestCompareIdentical(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	data := element("login", map[string]domain.Value{
		"score": domain.Number(10),
		"user":  domain.Object(map[string]domain.Value{"name": domain.String("ann"), "tags": domain.Array(domain.String("a"))}),
		"ok":    domain.Bool(true),
	})

	res := e.Compare(data, data)
	assert.Equal(t, domain.VerdictPass, res.Verdict)
	assert.True(t, res.Matches)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 3, res.KeyCount)
	assert.Empty(t, res.Mismatches)
}

func TestCompareNoBaseline(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	res := e.Compare(element("login", map[string]domain.Value{"score": domain.Number(1)}), nil)

	assert.Equal(t, domain.VerdictNoBaseline, res.Verdict)
	assert.False(t, res.Matches)
	assert.Equal(t, 1, res.KeyCount)
	assert.Equal(t, "login", res.Testcase)
}

func TestCompareNumericMismatch(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	res := e.Compare(
		element("signup", map[string]domain.Value{"score": domain.Number(5), "name": domain.String("x")}),
		element("signup", map[string]domain.Value{"score": domain.Number(10), "name": domain.String("x")}),
	)

	assert.Equal(t, domain.VerdictFail, res.Verdict)
	assert.Equal(t, 0.5, res.Score)
	m := res.FindMismatch("signup.score")
	require.NotNil(t, m)
	assert.Equal(t, domain.MismatchChanged, m.Kind)
	assert.Equal(t, 5.0, m.Submitted.Number)
	assert.Equal(t, 10.0, m.Baseline.Number)
	assert.Equal(t, []string{"value is smaller by 5.000000"}, m.Desc)
}

func TestDescribeNumber(t *testing.T) {
	assert.Equal(t, "value is larger by 20.000000 percent", describeNumber(12, 10))
	assert.Equal(t, "value is larger by 10.000000 percent", describeNumber(1.1, 1.0))
	assert.Equal(t, "value is smaller by 5.000000", describeNumber(5, 10))
	assert.Equal(t, "value is larger by 3.000000", describeNumber(3, 0))
}

func TestCompareTolerance(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{
		Tolerance: config.Tolerance{Absolute: 0.5},
		Keys:      map[string]config.Tolerance{"latency": {Relative: 0.1}},
	})

	res := e.Compare(
		element("t", map[string]domain.Value{"score": domain.Number(10.4), "latency": domain.Number(105)}),
		element("t", map[string]domain.Value{"score": domain.Number(10), "latency": domain.Number(100)}),
	)
	assert.Equal(t, domain.VerdictPass, res.Verdict)

	res = e.Compare(
		element("t", map[string]domain.Value{"score": domain.Number(11), "latency": domain.Number(120)}),
		element("t", map[string]domain.Value{"score": domain.Number(10), "latency": domain.Number(100)}),
	)
	assert.Equal(t, 0.0, res.Score)
	assert.NotNil(t, res.FindMismatch("t.score"))
	assert.NotNil(t, res.FindMismatch("t.latency"))
}

func TestCompareTypeMismatch(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	res := e.Compare(
		element("t", map[string]domain.Value{"v": domain.String("1")}),
		element("t", map[string]domain.Value{"v": domain.Number(1)}),
	)
	m := res.FindMismatch("t.v")
	require.NotNil(t, m)
	assert.Equal(t, []string{"result types are different"}, m.Desc)
}

func TestCompareArrays(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})

	res := e.Compare(
		element("t", map[string]domain.Value{"flags": domain.Array(domain.Bool(true), domain.Bool(false))}),
		element("t", map[string]domain.Value{"flags": domain.Array(domain.Bool(true), domain.Bool(true))}),
	)
	m := res.FindMismatch("t.flags")
	require.NotNil(t, m)
	assert.Equal(t, 0.5, m.Score)
	assert.NotNil(t, res.FindMismatch("t.flags[1]"))

	res = e.Compare(
		element("t", map[string]domain.Value{"xs": domain.Array(domain.Number(1), domain.Number(16))}),
		element("t", map[string]domain.Value{"xs": domain.Array(domain.Number(1), domain.Number(2), domain.Number(3), domain.Number(4))}),
	)
	m = res.FindMismatch("t.xs")
	require.NotNil(t, m)
	assert.Equal(t, []string{"array size shrunk by 2 elements", "[1]:value is larger by 14.000000"}, m.Desc)
	assert.Equal(t, 0.25, m.Score)

	res = e.Compare(
		element("t", map[string]domain.Value{"xs": domain.Array(domain.Number(1), domain.Number(2), domain.Number(3))}),
		element("t", map[string]domain.Value{"xs": domain.Array(domain.Number(1))}),
	)
	m = res.FindMismatch("t.xs")
	require.NotNil(t, m)
	assert.Equal(t, []string{"array size grown by 2 elements"}, m.Desc)
}

func TestCompareNestedObjects(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	res := e.Compare(
		element("t", map[string]domain.Value{"user": domain.Object(map[string]domain.Value{
			"name": domain.String("ann"),
			"age":  domain.Number(30),
		})}),
		element("t", map[string]domain.Value{"user": domain.Object(map[string]domain.Value{
			"name":  domain.String("bob"),
			"email": domain.String("b@x"),
		})}),
	)

	assert.Equal(t, domain.VerdictFail, res.Verdict)
	assert.Equal(t, domain.MismatchNew, res.FindMismatch("t.user.age").Kind)
	assert.Equal(t, domain.MismatchMissing, res.FindMismatch("t.user.email").Kind)
	assert.Equal(t, "ann", res.FindMismatch("t.user.name").Submitted.Str)
}

func TestCompareNewAndMissingKeys(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	res := e.Compare(
		&domain.ElementData{Testcase: "t", Results: map[string]domain.Value{"a": domain.Number(1), "b": domain.Number(2)}},
		&domain.ElementData{Testcase: "t", Results: map[string]domain.Value{"a": domain.Number(1), "c": domain.Number(3)}, Assertions: map[string]domain.Value{"ok": domain.Bool(true)}},
	)

	assert.Equal(t, 4, res.KeyCount)
	assert.Equal(t, 1, res.MatchCount)
	assert.Equal(t, domain.MismatchNew, res.FindMismatch("t.b").Kind)
	assert.Equal(t, domain.MismatchMissing, res.FindMismatch("t.c").Kind)
	assert.Equal(t, domain.MismatchMissing, res.FindMismatch("t.assert:ok").Kind)
}

func TestCompareMetricsDoNotScore(t *testing.T) {
	e := NewEngine(config.ComparisonPolicy{})
	res := e.Compare(
		&domain.ElementData{Testcase: "t", Results: map[string]domain.Value{"a": domain.Number(1)}, Metrics: map[string]float64{"total": 120}},
		&domain.ElementData{Testcase: "t", Results: map[string]domain.Value{"a": domain.Number(1)}, Metrics: map[string]float64{"total": 80, "io": 4}},
	)

	assert.Equal(t, domain.VerdictPass, res.Verdict)
	require.Len(t, res.Metrics, 2)
	assert.Equal(t, "io", res.Metrics[0].Key)
	assert.Nil(t, res.Metrics[0].Submitted)
	assert.Equal(t, 120.0, *res.Metrics[1].Submitted)
}
