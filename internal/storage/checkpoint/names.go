package checkpoint

import (
	"strconv"
	"strings"

	"github.com/yndnr/pebbl-go/internal/core/domain"
)

const (
	numberInfix   = ".cp"
	rankInfix     = ".p"
	fileExtension = ".bdat"
	tempSuffix    = ".tmp"
)

// FileName returns the checkpoint file name for problem, number and rank.
func FileName(problem string, number, rank int) string {
	return problem + numberInfix + strconv.Itoa(number) + rankInfix + strconv.Itoa(rank) + fileExtension
}

// MatchFileName parses a checkpoint file name for problem.
//
// ok is false when name does not belong to problem's checkpoint set at all.
// A name that starts with "<problem>.cp" and ends in ".bdat" but does not
// parse returns ErrMalformedFileName. Numbers must be canonical decimal
// (no sign, no leading zeros) so that FileName(MatchFileName(n)) == n.
func MatchFileName(problem, name string) (number, rank int, ok bool, err error) {
	prefix := problem + numberInfix
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileExtension) {
		return 0, 0, false, nil
	}
	if len(name) < len(prefix)+len(fileExtension) {
		return 0, 0, false, nil
	}
	middle := name[len(prefix) : len(name)-len(fileExtension)]

	k, p, found := strings.Cut(middle, rankInfix)
	if !found {
		return 0, 0, false, domain.ErrMalformedFileName.WithDetailsf("%q: missing %q", name, rankInfix)
	}
	number, okK := parseDecimal(k)
	rank, okP := parseDecimal(p)
	if !okK || !okP {
		return 0, 0, false, domain.ErrMalformedFileName.WithDetailsf("%q", name)
	}
	return number, rank, true, nil
}

func parseDecimal(s string) (int, bool) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func tempName(name string) string {
	return "." + name + tempSuffix
}
