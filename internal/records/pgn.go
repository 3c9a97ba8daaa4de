package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

// resultToken maps a winner side name to the PGN result.
func resultToken(winner, reason string) string {
	switch winner {
	case rules.White.String():
		return "1-0"
	case rules.Black.String():
		return "0-1"
	}
	if reason == chessdto.ReasonAbandoned || reason == "" {
		return "*"
	}
	return "1/2-1/2"
}

// BuildPGN renders a record as PGN text.
func BuildPGN(r chessdto.GameRecord) string {
	var b strings.Builder
	date := r.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Cheese Arena\"]\n")
	b.WriteString("[Site \"cheese-arena\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(r.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(r.Black))
	if r.StartFEN != "" && r.StartFEN != rules.StartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(r.StartFEN))
	}
	if r.ECO != "" {
		fmt.Fprintf(&b, "[ECO \"%s\"]\n", sanitizePGN(r.ECO))
		fmt.Fprintf(&b, "[Opening \"%s\"]\n", sanitizePGN(r.Opening))
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(r.Reason)))
	}
	result := r.Result
	if result == "" {
		result = "*"
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(r.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(r.MovesSAN[i]))
		if i+1 < len(r.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(r.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
