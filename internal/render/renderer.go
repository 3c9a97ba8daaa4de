// Package render draws board snapshots as PNG.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"path"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-arena/internal/rules"
)

const (
	SquareSize   = 64
	boardSize    = SquareSize * 8
	sideMargin   = 28
	topMargin    = 64
	bottomMargin = 28
	panelHeight  = 30
	panelRadius  = 8
	panelPadX    = 16

	Width  = boardSize + sideMargin*2
	Height = boardSize + topMargin + bottomMargin
)

type Highlight struct {
	From rules.Square
	To   rules.Square
}

type Options struct {
	Highlight *Highlight
	// Perspective is the side drawn at the bottom.
	Perspective rules.Side
	Header      string
	Turn        string
	// Material is white minus black, in pawns.
	Material int
}

type Renderer interface {
	RenderPNG(ctx context.Context, pos rules.Position, opts Options) ([]byte, error)
}

type svgRenderer struct {
	glyphs *glyphSet
}

func NewRenderer() Renderer { return svgRenderer{glyphs: &glyphSet{size: SquareSize}} }

func (r svgRenderer) RenderPNG(ctx context.Context, pos rules.Position, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	g := geometry{origin: image.Point{X: sideMargin, Y: topMargin}, flip: opts.Perspective == rules.Black}
	drawHUD(img, opts, g.boardRect())
	drawSquares(img, g)
	drawHighlight(img, pos, opts.Highlight, g)
	if err := r.drawPieces(img, pos, g); err != nil {
		return nil, err
	}
	drawCoordinates(img, g)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	backgroundColor     = color.RGBA{R: 22, G: 24, B: 34, A: 255}
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	whiteMoveFill       = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow      = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	hudPanelColor       = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudTextPrimary      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

type geometry struct {
	origin image.Point
	flip   bool
}

func (g geometry) boardRect() image.Rectangle {
	return image.Rect(g.origin.X, g.origin.Y, g.origin.X+boardSize, g.origin.Y+boardSize)
}

// cell maps a square to its column and row on screen.
func (g geometry) cell(sq rules.Square) (col, row int) {
	col, row = sq.File(), 7-sq.Rank()
	if g.flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func (g geometry) squareRect(sq rules.Square) image.Rectangle {
	col, row := g.cell(sq)
	x := g.origin.X + col*SquareSize
	y := g.origin.Y + row*SquareSize
	return image.Rect(x, y, x+SquareSize, y+SquareSize)
}

func (g geometry) center(sq rules.Square) image.Point {
	r := g.squareRect(sq)
	return image.Point{X: r.Min.X + SquareSize/2, Y: r.Min.Y + SquareSize/2}
}

func drawSquares(dst *image.RGBA, g geometry) {
	for sq := rules.Square(0); sq < 64; sq++ {
		clr := color.Color(lightSquare)
		if (sq.File()+sq.Rank())%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(dst, g.squareRect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func (r svgRenderer) drawPieces(dst *image.RGBA, pos rules.Position, g geometry) error {
	tiles, err := r.glyphs.load()
	if err != nil {
		return err
	}
	for sq := rules.Square(0); sq < 64; sq++ {
		piece := pos.Board[sq]
		if piece.Empty() {
			continue
		}
		tile, ok := tiles[piece]
		if !ok {
			return fmt.Errorf("no glyph for %v", piece)
		}
		imagedraw.Draw(dst, g.squareRect(sq), tile, image.Point{}, imagedraw.Over)
	}
	return nil
}

//go:embed assets/pieces/*.svg
var pieceAssets embed.FS

const pieceDir = "assets/pieces"

// glyphSet holds every piece rasterized at one tile size. Tiles are built on
// first use and shared by all renders afterwards.
type glyphSet struct {
	size  int
	once  sync.Once
	tiles map[rules.Piece]*image.RGBA
	err   error
}

func (gs *glyphSet) load() (map[rules.Piece]*image.RGBA, error) {
	gs.once.Do(func() { gs.tiles, gs.err = rasterizeGlyphs(gs.size) })
	return gs.tiles, gs.err
}

// rasterizeGlyphs reads files named <side><KIND>.svg, e.g. wN.svg.
func rasterizeGlyphs(size int) (map[rules.Piece]*image.RGBA, error) {
	entries, err := pieceAssets.ReadDir(pieceDir)
	if err != nil {
		return nil, err
	}
	tiles := make(map[rules.Piece]*image.RGBA, len(entries))
	for _, ent := range entries {
		piece, ok := glyphPiece(ent.Name())
		if !ok {
			continue
		}
		name := path.Join(pieceDir, ent.Name())
		data, err := pieceAssets.ReadFile(name)
		if err != nil {
			return nil, err
		}
		icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		icon.SetTarget(0, 0, float64(size), float64(size))
		tile := image.NewRGBA(image.Rect(0, 0, size, size))
		icon.Draw(rasterx.NewDasher(size, size, rasterx.NewScannerGV(size, size, tile, tile.Bounds())), 1)
		tiles[piece] = tile
	}
	for side := rules.White; side <= rules.Black; side++ {
		for k := rules.Pawn; k <= rules.King; k++ {
			if _, ok := tiles[rules.Piece{Kind: k, Side: side}]; !ok {
				return nil, fmt.Errorf("missing glyph %v %v", side, k)
			}
		}
	}
	return tiles, nil
}

func glyphPiece(file string) (rules.Piece, bool) {
	base := strings.TrimSuffix(file, ".svg")
	if len(base) != 2 || base == file {
		return rules.Piece{}, false
	}
	side, ok := rules.ParseSide(base[:1])
	if !ok {
		return rules.Piece{}, false
	}
	letter := base[1] | 0x20
	for k := rules.Pawn; k <= rules.King; k++ {
		if k.Letter() == letter {
			return rules.Piece{Kind: k, Side: side}, true
		}
	}
	return rules.Piece{}, false
}

// drawHighlight marks the last move: squares for white, an arrow for black.
func drawHighlight(img *image.RGBA, pos rules.Position, h *Highlight, g geometry) {
	if h == nil || !h.From.Valid() || !h.To.Valid() {
		return
	}
	mover := pos.Board[h.To]
	if mover.Empty() {
		mover = pos.Board[h.From]
	}
	if !mover.Empty() && mover.Side == rules.White {
		imagedraw.Draw(img, g.squareRect(h.From), image.NewUniform(whiteMoveFill), image.Point{}, imagedraw.Over)
		imagedraw.Draw(img, g.squareRect(h.To), image.NewUniform(whiteMoveFill), image.Point{}, imagedraw.Over)
		return
	}
	drawArrow(img, g.center(h.From), g.center(h.To), blackMoveArrow)
}

func drawHUD(img *image.RGBA, opts Options, board image.Rectangle) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}

	title := strings.TrimSpace(opts.Header)
	if title == "" {
		title = "Cheese Arena"
	}
	score := "0"
	if opts.Material != 0 {
		score = fmt.Sprintf("%+d", opts.Material)
	}
	bottom := board.Min.Y - (topMargin-panelHeight)/2
	top := bottom - panelHeight

	scoreW := drawer.MeasureString(score).Round() + panelPadX*2
	scoreRect := image.Rect(board.Max.X-scoreW, top, board.Max.X, bottom)

	turn := strings.TrimSpace(opts.Turn)
	turnW := 0
	if turn != "" {
		turnW = drawer.MeasureString(turn).Round() + panelPadX*2
	}
	turnRect := image.Rect(scoreRect.Min.X-12-turnW, top, scoreRect.Min.X-12, bottom)

	maxTitle := turnRect.Min.X - 12 - board.Min.X
	if turn == "" {
		maxTitle = scoreRect.Min.X - 12 - board.Min.X
	}
	title = truncateWithEllipsis(basicfont.Face7x13, title, maxTitle-panelPadX*2)
	titleRect := image.Rect(board.Min.X, top, board.Min.X+drawer.MeasureString(title).Round()+panelPadX*2, bottom)

	drawRoundedPanel(img, titleRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, titleRect, title, hudTextPrimary)
	drawRoundedPanel(img, scoreRect, panelRadius, hudPanelColor)
	drawCenteredString(drawer, scoreRect, score, hudTextPrimary)
	if turn != "" {
		drawRoundedPanel(img, turnRect, panelRadius, hudPanelColor)
		drawCenteredString(drawer, turnRect, turn, hudTextPrimary)
	}
}

func drawCoordinates(dst *image.RGBA, g geometry) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordinateTextColor)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	board := g.boardRect()
	for i := 0; i < 8; i++ {
		rankSq := rules.NewSquare(0, i)
		c := g.center(rankSq)
		drawCenteredText(drawer, string(rune('1'+i)), board.Min.X-sideMargin/2, c.Y+ascent/2)

		fileSq := rules.NewSquare(i, 0)
		c = g.center(fileSq)
		drawCenteredText(drawer, string(rune('a'+i)), c.X, board.Max.Y+ascent+4)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 {
		return trimmed
	}
	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	const ellipsis = "..."
	if drawer.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}
