package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/park285/cheese-arena/internal/rules"
)

func decode(t *testing.T, raw []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func TestRenderStartPosition(t *testing.T) {
	raw, err := NewRenderer().RenderPNG(context.Background(), rules.StartPosition(), Options{Header: "u1 vs u2", Turn: "white"})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, raw)
	if b := img.Bounds(); b.Dx() != Width || b.Dy() != Height {
		t.Fatalf("size = %v", b)
	}
	// e4 is empty and light; e1 holds the white king
	g := geometry{origin: image.Point{X: sideMargin, Y: topMargin}}
	empty := g.center(rules.NewSquare(4, 3))
	r, gg, b, _ := img.At(empty.X, empty.Y).RGBA()
	if uint8(r>>8) != lightSquare.R || uint8(gg>>8) != lightSquare.G || uint8(b>>8) != lightSquare.B {
		t.Fatalf("e4 color = %d,%d,%d", r>>8, gg>>8, b>>8)
	}
	king := g.center(rules.NewSquare(4, 0))
	if c := img.At(king.X, king.Y+10); c == img.At(empty.X, empty.Y) {
		t.Fatalf("e1 looks empty")
	}
}

func TestRenderFlippedAndHighlight(t *testing.T) {
	pos := rules.StartPosition()
	m := rules.Move{From: rules.NewSquare(4, 1), To: rules.NewSquare(4, 3), Piece: rules.Pawn, Flag: rules.FlagDoublePush}
	pos = pos.After(m)
	opts := Options{Perspective: rules.Black, Highlight: &Highlight{From: m.From, To: m.To}, Material: 0}
	raw, err := NewRenderer().RenderPNG(context.Background(), pos, opts)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, raw)
	g := geometry{origin: image.Point{X: sideMargin, Y: topMargin}, flip: true}
	// a1 is drawn at the top right when black is at the bottom
	col, row := g.cell(rules.NewSquare(0, 0))
	if col != 7 || row != 0 {
		t.Fatalf("a1 cell = %d,%d", col, row)
	}
	// e2 is empty after the push and tinted by the highlight
	from := g.squareRect(m.From)
	r, gg, b, _ := img.At(from.Min.X+2, from.Min.Y+2).RGBA()
	if uint8(r>>8) == lightSquare.R && uint8(gg>>8) == lightSquare.G && uint8(b>>8) == lightSquare.B {
		t.Fatalf("e2 not highlighted")
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRenderer().RenderPNG(ctx, rules.StartPosition(), Options{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestGlyphSetCoversEveryPiece(t *testing.T) {
	gs := &glyphSet{size: 32}
	tiles, err := gs.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tiles) != 12 {
		t.Fatalf("tiles = %d, want 12", len(tiles))
	}
	for piece, tile := range tiles {
		if tile.Bounds().Dx() != 32 {
			t.Errorf("%v: width %d", piece, tile.Bounds().Dx())
		}
		painted := false
		for i := 3; i < len(tile.Pix); i += 4 {
			if tile.Pix[i] != 0 {
				painted = true
				break
			}
		}
		if !painted {
			t.Errorf("%v: empty tile", piece)
		}
	}
	again, _ := gs.load()
	if again[rules.Piece{Kind: rules.King, Side: rules.White}] != tiles[rules.Piece{Kind: rules.King, Side: rules.White}] {
		t.Fatalf("tiles rebuilt on second load")
	}
}

func TestGlyphPiece(t *testing.T) {
	cases := map[string]struct {
		want rules.Piece
		ok   bool
	}{
		"bN.svg":  {rules.Piece{Kind: rules.Knight, Side: rules.Black}, true},
		"wK.svg":  {rules.Piece{Kind: rules.King, Side: rules.White}, true},
		"wX.svg":  {ok: false},
		"README":  {ok: false},
		"wKK.svg": {ok: false},
	}
	for name, tc := range cases {
		got, ok := glyphPiece(name)
		if ok != tc.ok || got != tc.want {
			t.Errorf("%s: got %v %v", name, got, ok)
		}
	}
}

func TestSanitizeSVG(t *testing.T) {
	got := string(sanitizeSVG([]byte(`style="fill: #fff;stroke: 000000"`)))
	if got != `style="fill:#fff;stroke:#000000"` {
		t.Fatalf("sanitize = %s", got)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	face := basicfont.Face7x13
	if got := truncateWithEllipsis(face, "short", 200); got != "short" {
		t.Fatalf("got %q", got)
	}
	// basicfont glyphs are 7px wide
	if got := truncateWithEllipsis(face, "a very long header", 63); got != "a very..." {
		t.Fatalf("got %q", got)
	}
}
