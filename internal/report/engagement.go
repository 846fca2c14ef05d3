package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sells-group/recycling-monitor/internal/forms"
	"github.com/sells-group/recycling-monitor/internal/model"
	"github.com/sells-group/recycling-monitor/internal/normalize"
)

// Level bands an engagement percentage.
type Level string

const (
	LevelHigh   Level = "Alto"
	LevelMedium Level = "Médio"
	LevelLow    Level = "Baixo"
)

// Band bounds, in percent. Alto is strictly above highAbove.
var (
	highAbove  = decimal.NewFromInt(90)
	mediumFrom = decimal.NewFromInt(60)
	hundred    = decimal.NewFromInt(100)
)

// LevelOf bands a percentage: above 90 is Alto, 60 to 90 is Médio.
func LevelOf(pct decimal.Decimal) Level {
	switch {
	case pct.GreaterThan(highAbove):
		return LevelHigh
	case pct.GreaterThanOrEqual(mediumFrom):
		return LevelMedium
	default:
		return LevelLow
	}
}

// Source is the snapshot of one form for a division.
type Source struct {
	Form     *forms.Form
	Snapshot *model.Snapshot
}

// Engagement is how consistently one entity has submitted its forms.
type Engagement struct {
	Region       string `json:"region"`
	Municipality string `json:"municipality"`
	Unit         string `json:"unit"`
	Entity       string `json:"entity"`

	// Sent maps each single-period form to whether the entity submitted it.
	Sent map[string]bool `json:"sent"`
	// Monthly counts the expected months submitted on the monthly form.
	Monthly  int             `json:"monthly"`
	Total    int             `json:"total"`
	Expected int             `json:"expected"`
	Percent  decimal.Decimal `json:"percent"`
	Level    Level           `json:"level"`
}

// Summary is the engagement of every entity tracked on the monthly form.
type Summary struct {
	Division       string       `json:"division"`
	Since          model.Period `json:"since"`
	ExpectedMonths int          `json:"expected_months"`
	SingleForms    []string     `json:"single_forms"`
	Rows           []Engagement `json:"rows"`
}

// ExpectedMonths counts the months from since up to, but excluding, the
// month of now.
func ExpectedMonths(since model.Period, now time.Time) int {
	if since.IsZero() {
		return 0
	}
	return max(since.MonthsUntil(now), 0)
}

// Engage scores every entity found on the monthly snapshot. A single-period
// form counts once when its row is Enviado or Duplicado. The monthly form
// counts one per tab in [since, month of now) whose row is Enviado or
// Duplicado. The expected total is one per single form plus the expected
// months.
func Engage(monthly Source, singles []Source, since model.Period, now time.Time) Summary {
	sum := Summary{
		Division:       monthly.Snapshot.Division,
		Since:          since,
		ExpectedMonths: ExpectedMonths(since, now),
	}
	current := model.PeriodOf(now)

	sent := make([]map[string]bool, len(singles))
	for i, s := range singles {
		sum.SingleForms = append(sum.SingleForms, s.Form.Name)
		sent[i] = submittedEntities(s)
	}

	var order []string
	byEntity := make(map[string]*Engagement)
	for _, tab := range monthly.Snapshot.Tabs {
		counted := !tab.Period.Before(since) && tab.Period.Before(current)
		for _, r := range tab.Rows {
			if !r.Keyed {
				continue
			}
			e, ok := byEntity[r.Key.Entity]
			if !ok {
				e = &Engagement{
					Region:       r.Region,
					Municipality: r.Municipality,
					Unit:         r.Unit,
					Entity:       r.Key.Entity,
					Sent:         make(map[string]bool, len(singles)),
				}
				byEntity[r.Key.Entity] = e
				order = append(order, r.Key.Entity)
			}
			if counted && submitted(r.Status) {
				e.Monthly++
			}
		}
	}

	expected := len(singles) + sum.ExpectedMonths
	for _, entity := range order {
		e := byEntity[entity]
		e.Total = e.Monthly
		for i, s := range singles {
			ok := sent[i][singleKey(s.Form, e.Municipality, e.Unit)]
			e.Sent[s.Form.Name] = ok
			if ok {
				e.Total++
			}
		}
		e.Expected = expected
		if expected > 0 {
			e.Percent = decimal.NewFromInt(int64(e.Total)).
				Mul(hundred).
				Div(decimal.NewFromInt(int64(expected))).
				Round(1)
		}
		e.Level = LevelOf(e.Percent)
		sum.Rows = append(sum.Rows, *e)
	}
	return sum
}

func submitted(s model.Status) bool {
	return s == model.StatusSent || s == model.StatusDuplicate
}

// submittedEntities keys the submitted rows of a single-period form.
func submittedEntities(s Source) map[string]bool {
	out := make(map[string]bool)
	for _, tab := range s.Snapshot.Tabs {
		for _, r := range tab.Rows {
			if r.Keyed && submitted(r.Status) {
				out[r.Key.Entity] = true
			}
		}
	}
	return out
}

// singleKey is the entity key of a monthly row on a single-period form. Forms
// without a unit are keyed by municipality alone.
func singleKey(form *forms.Form, municipality, unit string) string {
	if !form.HasUnit {
		unit = ""
	}
	key, _ := normalize.Key(municipality, unit)
	return key
}
