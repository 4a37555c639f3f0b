package amount

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/models"
)

func TestCommissionPercent(t *testing.T) {
	owner := &models.Owner{
		Percents: map[string]float64{"GAZPROM": 5},
	}

	if got := CommissionPercent(owner, "GAZPROM"); !got.Equal(decimal.NewFromInt(5)) {
		t.Errorf("override percent = %s, want 5", got)
	}
	if got := CommissionPercent(owner, "TINKOFF"); !got.Equal(decimal.NewFromInt(8)) {
		t.Errorf("fallback percent = %s, want 8", got)
	}
	if got := CommissionPercent(nil, "GAZPROM"); !got.Equal(decimal.NewFromInt(8)) {
		t.Errorf("nil owner percent = %s, want 8", got)
	}
}

func TestSubtractCommission(t *testing.T) {
	tests := []struct {
		name     string
		sum      string
		percent  string
		included bool
		extra    string
		want     string
	}{
		// 1500 - 1500*0.08/1.08 = 1388.888... rounded up to cents
		{"included grosses up", "1500", "0.08", true, "0", "1388.89"},
		// 1500 - 1500*0.08 = 1380 exactly
		{"excluded plain", "1500", "0.08", false, "0", "1380"},
		{"extra deduction", "1500", "0.08", false, "10", "1370"},
		{"rounds up at the third decimal", "999.99", "0.05", false, "0", "950"},
		{"zero percent", "250.50", "0", false, "0", "250.5"},
	}

	for _, tt := range tests {
		sum := decimal.RequireFromString(tt.sum)
		percent := decimal.RequireFromString(tt.percent)
		extra := decimal.RequireFromString(tt.extra)
		want := decimal.RequireFromString(tt.want)

		got := SubtractCommission(sum, percent, tt.included, extra)
		if !got.Equal(want) {
			t.Errorf("%s: SubtractCommission = %s, want %s", tt.name, got, want)
		}
		if got.GreaterThan(sum) {
			t.Errorf("%s: result %s exceeds input sum %s", tt.name, got, sum)
		}
	}
}

func TestFinalAmount(t *testing.T) {
	tests := []struct {
		name       string
		subtracted string
		royalty    string
		want       string
	}{
		{"floors then subtracts", "1388.89", "8", "1380"},
		{"zero royalty", "1380", "0", "1380"},
		{"unparseable royalty ignored", "1380.75", "", "1380"},
		{"fractional royalty ignored", "1380", "7.5", "1380"},
		{"integral float royalty applies", "1380", "20.0", "1360"},
	}

	for _, tt := range tests {
		got := FinalAmount(decimal.RequireFromString(tt.subtracted), tt.royalty)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s: FinalAmount = %s, want %s", tt.name, got, tt.want)
		}
	}
}

// End-to-end arithmetic for the documented settlement example: 150000 minor
// units at 8% commission not included in the price, no royalty.
func TestSettlementExample(t *testing.T) {
	untouched := MajorUnits(decimal.NewFromInt(150000))
	if !untouched.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("untouched amount = %s, want 1500", untouched)
	}

	percent := CommissionPercent(&models.Owner{}, "GAZPROM").Div(decimal.NewFromInt(100))
	subtracted := SubtractCommission(untouched, percent, false, decimal.Zero)
	final := FinalAmount(subtracted, "0")
	if !final.Equal(decimal.NewFromInt(1380)) {
		t.Fatalf("final amount = %s, want 1380", final)
	}
}
