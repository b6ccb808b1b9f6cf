package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// sampler lets num out of every den high-volume debug records through.
// A zero rate lets everything through.
type sampler struct {
	num, den atomic.Int64
	seen     atomic.Uint64
}

func (s *sampler) set(num, den int64) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.num.Store(min(num, den))
	s.den.Store(den)
	s.seen.Store(0)
}

func (s *sampler) allow() bool {
	num, den := s.num.Load(), s.den.Load()
	if num <= 0 || den <= 0 {
		return true
	}
	return int64((s.seen.Add(1)-1)%uint64(den)) < num
}

// parseSampleRate reads "N/M", a bare "M" meaning one in M, or "all".
func parseSampleRate(raw string) (num, den int64, ok bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "all", "off", "0":
		return 0, 0, true
	case "":
		return 0, 0, false
	}
	left, right, frac := strings.Cut(raw, "/")
	if !frac {
		left, right = "1", raw
	}
	n, err1 := strconv.ParseInt(strings.TrimSpace(left), 10, 64)
	d, err2 := strconv.ParseInt(strings.TrimSpace(right), 10, 64)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return 0, 0, false
	}
	return n, d, true
}
