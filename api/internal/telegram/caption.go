package telegram

import (
	"strings"
)

// Target is what a screenshot should be checked against: an explicit code or
// a marketplace coupon whose listed code is looked up.
type Target struct {
	Code     string
	CouponID string
}

func (t Target) Empty() bool { return t.Code == "" && t.CouponID == "" }

// ParseCaption reads the target from a photo caption or /code arguments:
//
//	SAVE20
//	code: SAVE 20
//	coupon: 42      (or "coupon 42", "#42")
func ParseCaption(s string) (Target, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, false
	}
	// first line only; the rest is free text
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	lower := strings.ToLower(s)

	for _, p := range []string{"coupon:", "coupon ", "#"} {
		if strings.HasPrefix(lower, p) {
			id := strings.TrimSpace(s[len(p):])
			if id == "" || strings.ContainsAny(id, " \t") {
				return Target{}, false
			}
			return Target{CouponID: id}, true
		}
	}
	for _, p := range []string{"code:", "code "} {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	if s == "" {
		return Target{}, false
	}
	return Target{Code: s}, true
}
