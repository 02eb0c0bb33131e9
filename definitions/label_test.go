package definitions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  []string
	}{
		{"single segment", "ping", []string{"ping"}},
		{"two segments", "shop buy", []string{"shop", "buy"}},
		{"three segments", "shop item buy", []string{"shop", "item", "buy"}},
		{"overflow merges into third segment", "a b c d", []string{"a", "b", "c_d"}},
		{"long overflow", "a b c d e f", []string{"a", "b", "c_d_e_f"}},
		{"lower cases", "Shop Buy", []string{"shop", "buy"}},
		{"strips disallowed characters", "sh@op bu!y", []string{"shop", "buy"}},
		{"keeps dashes and underscores", "my-shop buy_now", []string{"my-shop", "buy_now"}},
		{"collapses extra whitespace", "  shop   buy  ", []string{"shop", "buy"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeLabel(tt.label)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 3)
		})
	}
}

func TestComputeID_Stable(t *testing.T) {
	a := ComputeID("shop.ShopUnit", "onBuy")
	b := ComputeID("shop.ShopUnit", "onBuy")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ComputeID("shop.ShopUnit", "onSell"))
	assert.Regexp(t, `^\d+$`, a)
}
