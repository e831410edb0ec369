package anomaly

import (
	"fmt"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Validate checks the window and requires an explicit location.
func (b BusinessHours) Validate() error {
	if b.Location == nil {
		return domain.Invalidf("business hours need an explicit timezone")
	}
	if b.StartHour < 0 || b.StartHour > 23 || b.EndHour < 1 || b.EndHour > 24 || b.StartHour >= b.EndHour {
		return domain.Invalidf("business hours %d-%d must satisfy 0 <= start < end <= 24", b.StartHour, b.EndHour)
	}
	return nil
}

// Timing flags transactions outside business hours or on a weekend. Every
// timestamp is converted to BusinessHours.Location before the hour and the
// weekday are read, so the result does not depend on the zone the caller
// parsed timestamps in.
type Timing struct{}

func (Timing) Method() Method { return MethodTiming }

func (Timing) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	bh := cfg.BusinessHours
	if err := bh.Validate(); err != nil {
		return nil, err
	}

	var flags []Flag
	for _, t := range txns {
		if t.Timestamp.IsZero() {
			return nil, domain.Invalidf("transaction %q has no timestamp", t.ID)
		}
		local := t.Timestamp.In(bh.Location)
		var reasons []string
		if h := local.Hour(); h < bh.StartHour || h >= bh.EndHour {
			reasons = append(reasons, fmt.Sprintf("at %s outside business hours %02d:00-%02d:00 %s",
				local.Format("15:04"), bh.StartHour, bh.EndHour, bh.Location))
		}
		if bh.FlagWeekends && isWeekend(local) {
			reasons = append(reasons, "on a "+local.Weekday().String())
		}
		if len(reasons) == 0 {
			continue
		}
		sev := domain.SeverityLow
		if len(reasons) > 1 {
			sev = domain.SeverityMedium
		}
		flags = append(flags, Flag{
			TransactionID: t.ID,
			Method:        MethodTiming,
			Score:         float64(len(reasons)),
			Reason:        strings.Join(reasons, "; "),
			Severity:      sev,
		})
	}
	return flags, nil
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Holiday flags transactions whose local date, in the business-hours
// location, is one of Config.Holidays (YYYY-MM-DD).
type Holiday struct{}

func (Holiday) Method() Method { return MethodHoliday }

func (Holiday) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	loc := cfg.BusinessHours.Location
	if loc == nil {
		return nil, domain.Invalidf("holiday check needs an explicit timezone")
	}
	days := make(map[string]bool, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		d, err := time.Parse(time.DateOnly, h)
		if err != nil {
			return nil, domain.Invalidf("holiday %q is not a YYYY-MM-DD date", h)
		}
		days[d.Format(time.DateOnly)] = true
	}
	if len(days) == 0 {
		return nil, nil
	}

	var flags []Flag
	for _, t := range txns {
		day := t.Timestamp.In(loc).Format(time.DateOnly)
		if !days[day] {
			continue
		}
		flags = append(flags, Flag{
			TransactionID: t.ID,
			Method:        MethodHoliday,
			Score:         1,
			Reason:        "booked on holiday " + day,
			Severity:      domain.SeverityLow,
		})
	}
	return flags, nil
}
