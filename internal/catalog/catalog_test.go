package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresflow/models"
)

func TestPrefix(t *testing.T) {
	cases := map[string]string{
		"cu2309": "cu",
		"rb2401": "rb",
		"c2401":  "c",
		"m2405":  "m",
		"SR309":  "SR",
		"TA405":  "TA",
		"x":      "x",
		"":       "",
	}
	for code, want := range cases {
		assert.Equal(t, want, Prefix(code), code)
	}
}

func TestResolve(t *testing.T) {
	cat := Default()

	cu, ok := cat.Resolve("cu2309")
	require.True(t, ok)
	assert.Equal(t, models.MarketSHFE, cu.MarketCode)
	assert.Equal(t, "cu", cu.Symbol)
	assert.Equal(t, models.FuturesDayOvernight, cu.TimeFrameType)

	rb, ok := cat.Resolve("rb2401")
	require.True(t, ok)
	assert.Equal(t, models.MarketSHFE, rb.MarketCode)
	assert.Equal(t, "rb", rb.Symbol)

	c, ok := cat.Resolve("c2401")
	require.True(t, ok)
	assert.Equal(t, models.MarketDCE, c.MarketCode)

	sr, ok := cat.Resolve("SR309")
	require.True(t, ok)
	assert.Equal(t, models.MarketCZCE, sr.MarketCode)

	_, ok = cat.Resolve("zz9999")
	assert.False(t, ok)
	_, ok = cat.Resolve("")
	assert.False(t, ok)
}

func TestDefaultCatalogShape(t *testing.T) {
	cat := Default()
	assert.Equal(t, []string{models.MarketCZCE, models.MarketDCE, models.MarketSHFE}, cat.Markets())
	assert.Equal(t, len(defaultCategories), cat.Len())

	for _, c := range cat.Categories() {
		assert.NotEmpty(t, c.Name, c.Symbol)
		assert.Equal(t, c.Symbol, Prefix(c.Symbol+"2401"), "symbol %s must be its own prefix", c.Symbol)
	}

	au, ok := cat.Lookup("au")
	require.True(t, ok)
	assert.Equal(t, models.FuturesDayOvernightLong, au.TimeFrameType)
	jb, _ := cat.Lookup("jb")
	assert.Equal(t, models.FuturesDayOnly, jb.TimeFrameType)
}

func TestContractCodes(t *testing.T) {
	p := Product{Symbol: "cu", Market: models.MarketSHFE, ContractMonths: []int{1, 3, 9, 12}, LastTradingDay: 15}

	now := time.Date(2023, 3, 10, 9, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"cu2401", "cu2303", "cu2309", "cu2312"}, p.ContractCodes(now))

	now = time.Date(2023, 3, 15, 9, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"cu2401", "cu2403", "cu2309", "cu2312"}, p.ContractCodes(now))

	czce := Product{Symbol: "SR", Market: models.MarketCZCE, ContractMonths: []int{1, 9, 13}}
	now = time.Date(2023, 9, 9, 9, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"SR401", "SR309"}, czce.ContractCodes(now))

	now = time.Date(2023, 9, 10, 9, 0, 0, 0, time.Local)
	assert.Equal(t, []string{"SR401", "SR409"}, czce.ContractCodes(now), "default last trading day is 10")
}

func TestSubscriptionCodes(t *testing.T) {
	cat := Default()
	now := time.Date(2024, 1, 20, 9, 0, 0, 0, time.Local)

	products := []Product{
		{Symbol: "rb", Market: models.MarketSHFE, ContractMonths: []int{5, 10}},
		{Symbol: "rb", Market: models.MarketSHFE, ContractMonths: []int{5}},
	}
	assert.Equal(t, []string{"rb2405", "rb2410"}, cat.SubscriptionCodes(products, now))

	rolling := cat.SubscriptionCodes(nil, now)
	assert.Len(t, rolling, 14*cat.Len())
	assert.Contains(t, rolling, "cu2312")
	assert.Contains(t, rolling, "cu2501")
	assert.NotContains(t, rolling, "cu2502")
	assert.Contains(t, rolling, "SR312")
	assert.Contains(t, rolling, "SR501")
}
