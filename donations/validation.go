package donations

import (
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Amount bounds shared by payments and collect targets.
const (
	MinAmount int64 = 1
	MaxAmount int64 = 1_000_000
)

var youtubeHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
}

// NormalizeVideoURL checks that raw is a YouTube watch link and reduces it to
// scheme, host, path and the v parameter.
func NormalizeVideoURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidVideoURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidVideoURL
	}
	if !youtubeHosts[strings.ToLower(u.Host)] {
		return "", ErrInvalidVideoURL
	}
	v := u.Query().Get("v")
	if v == "" {
		return "", ErrInvalidVideoURL
	}
	return u.Scheme + "://" + u.Host + u.Path + "?v=" + url.QueryEscape(v), nil
}

func videoURLRule() validation.Rule {
	return validation.By(func(value interface{}) error {
		v, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		_, err := NormalizeVideoURL(s)
		return err
	})
}

// closeDateRule requires the close date to fall on a later calendar day
// than now, in now's location.
func closeDateRule(now time.Time) validation.Rule {
	return validation.By(func(value interface{}) error {
		v, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		t, ok := v.(time.Time)
		if !ok || t.IsZero() {
			return nil
		}
		if !startOfDay(t.In(now.Location())).After(startOfDay(now)) {
			return ErrCloseDateNotFuture
		}
		return nil
	})
}

// Min skips zero values, so Required and NilOrNotEmpty reject them.
func amountRules() []validation.Rule {
	return []validation.Rule{validation.Required, validation.Min(MinAmount), validation.Max(MaxAmount)}
}

func optionalAmountRules() []validation.Rule {
	return []validation.Rule{validation.NilOrNotEmpty, validation.Min(MinAmount), validation.Max(MaxAmount)}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
