package domain_test

import (
	"testing"

	"github.com/bookworks/backoffice/internal/orders/domain"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantItem   domain.OrderItem
		wantAmount int64
	}{
		{
			name:       "jamb and waec science with amount",
			text:       "jamb and waec science @ 15,000",
			wantItem:   domain.ItemJambWaecScience,
			wantAmount: 15000,
		},
		{
			name:       "jamb art",
			text:       "JAMB art package",
			wantItem:   domain.ItemJambArt,
			wantAmount: 0,
		},
		{
			name:       "waec without track falls back to commercial",
			text:       "waec bundle @ 9,500",
			wantItem:   domain.ItemWaecCommercial,
			wantAmount: 9500,
		},
		{
			name:       "no exam keyword defaults to waec",
			text:       "science books",
			wantItem:   domain.ItemWaecScience,
			wantAmount: 0,
		},
		{
			name:       "amount without delimiter uses first number",
			text:       "jamb commercial 12,000 naira",
			wantItem:   domain.ItemJambCommercial,
			wantAmount: 12000,
		},
		{
			name:       "amount after delimiter wins over earlier number",
			text:       "2 jamb science @ 18,500",
			wantItem:   domain.ItemJambScience,
			wantAmount: 18500,
		},
		{
			name:       "empty field",
			text:       "",
			wantItem:   domain.ItemNone,
			wantAmount: 0,
		},
		{
			name:       "whitespace only field",
			text:       "   ",
			wantItem:   domain.ItemNone,
			wantAmount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, amount := domain.ParseCategory(tt.text)
			if item != tt.wantItem {
				t.Errorf("ParseCategory() item = %q, want %q", item, tt.wantItem)
			}
			if amount != tt.wantAmount {
				t.Errorf("ParseCategory() amount = %d, want %d", amount, tt.wantAmount)
			}
		})
	}
}

func TestItemFromProductName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.OrderItem
	}{
		{name: "waec art", text: "waec art", want: domain.ItemWaecArt},
		{name: "jamb and waec commercial", text: "Jamb & Waec Commercial", want: domain.ItemJambWaecCommercial},
		{name: "jamb science", text: "jamb science pack", want: domain.ItemJambScience},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.ItemFromProductName(tt.text); got != tt.want {
				t.Errorf("ItemFromProductName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		name  string
		state string
		want  string
	}{
		{name: "cross rivers variant", state: "Cross Rivers", want: "Cross River"},
		{name: "lowercase cross river", state: "cross river state", want: "Cross River"},
		{name: "other state untouched", state: "Lagos", want: "Lagos"},
		{name: "empty state untouched", state: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.NormalizeState(tt.state); got != tt.want {
				t.Errorf("NormalizeState() = %q, want %q", got, tt.want)
			}
		})
	}
}
