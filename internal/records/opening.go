package records

import (
	"strings"
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/park285/cheese-arena/internal/rules"
)

var ecoBook = sync.OnceValue(opening.NewBookECO)

// classifyOpening names the opening of a game played from the standard
// start. It replays the UCI moves until one fails and reports the most
// specific ECO entry along that line.
func classifyOpening(startFEN string, uci []string) (code, title string) {
	if len(uci) == 0 || (startFEN != "" && startFEN != rules.StartFEN) {
		return "", ""
	}
	game := chesslib.NewGame()
	for _, mv := range uci {
		if err := game.PushNotationMove(strings.TrimSpace(mv), chesslib.UCINotation{}, nil); err != nil {
			break
		}
	}
	if len(game.Moves()) == 0 {
		return "", ""
	}
	if eco := ecoBook().Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
